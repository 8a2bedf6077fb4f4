package dhcp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDhcpdConf(t *testing.T) {
	table := []struct {
		Name string
		In   TemplateData
		Out  string
		Err  error
	}{
		{
			Name: "basic-template",
			In: TemplateData{
				GlobalDHCPSnippets: []DhcpSnippet{
					{
						Name:        "global-snippet-test",
						Description: "test",
						Value:       "",
					},
				},
				FailoverPeers: []FailoverPeer{
					{
						Name:        "test-failover-peer-primary",
						Mode:        "primary",
						Address:     "10.0.0.2",
						PeerAddress: "10.0.0.3",
					}, {
						Name:        "test-failover-peer-secondary",
						Mode:        "secondary",
						Address:     "10.0.0.3",
						PeerAddress: "10.0.0.2",
					},
				},
				SharedNetworks: []SharedNetwork{
					{
						Name: "test-shared-network",
						Subnets: []Subnet{
							{
								Subnet:         "10.0.0.0/24",
								SubnetMask:     "255.255.255.0",
								NextServer:     "10.0.0.2",
								BroadcastIP:    "10.0.0.255",
								DNSServers:     []string{"1.1.1.1"},
								DomainName:     "maas",
								SearchList:     []string{"maas"},
								RouterIP:       "10.0.0.1",
								NTPServersIPv4: "10.0.0.2",
								NTPServersIPv6: "fe80::e922:d79c:9818:f397",
								MTU:            1500,
								Pools: []Pool{
									{
										FailoverPeer: "test-failover-peer-primary",
										IPRangeLow:   "10.0.0.4",
										IPRangeHigh:  "10.0.0.28",
									},
								},
							},
						},
					},
				},
				Hosts: []Host{
					{
						Host: "test.maas",
						MAC:  "de:ad:c0:de:ca:fe",
						IP:   "10.0.0.29",
					},
				},
				DHCPHelper: DefaultDHCPHelper,
				DHCPSocket: "/var/lib/maas/dhcpd.sock",
				OMAPIKey:   "1234",
			},
			Out: `# fleetd-managed dhcpd.conf — rebuilt wholesale on every subnet/host change,
# never hand-edited.
ddns-update-style none;
authoritative;


omshell-port /var/lib/maas/dhcpd.sock;


omapi-key fleetd-key;
key fleetd-key {
	algorithm hmac-md5;
	secret "1234";
}



# global-snippet-test: test




failover peer "test-failover-peer-primary" {
	primary;
	address 10.0.0.2;
	peer address 10.0.0.3;
}

failover peer "test-failover-peer-secondary" {
	secondary;
	address 10.0.0.3;
	peer address 10.0.0.2;
}



shared-network "test-shared-network" {

	subnet 10.0.0.0/24 netmask 255.255.255.0 {
		option routers 10.0.0.1;
		option domain-name-servers 1.1.1.1;
		option domain-name "maas";
		option domain-search "maas";
		option broadcast-address 10.0.0.255;
		option interface-mtu 1500;
		next-server 10.0.0.2;




		pool {
			failover peer "test-failover-peer-primary";
			range 10.0.0.4 10.0.0.28;

		}



	}

}



host test.maas {
	hardware ethernet de:ad:c0:de:ca:fe;
	fixed-address 10.0.0.29;

}
`,
		},
	}
	for _, tcase := range table {
		t.Run(tcase.Name, func(tt *testing.T) {
			buf := &bytes.Buffer{}
			err := RenderDhcpdConf(buf, tcase.In)
			if err != nil {
				tt.Fatal(err)
			}
			out := buf.String()
			assert.Equal(
				tt,
				strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(tcase.Out), "\t", ""), " ", ""),
				strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(out), "\t", ""), " ", ""),
			)
		})
	}
}

func TestRenderDhcpd6Conf(t *testing.T) {
	table := []struct {
		Name string
		In   TemplateData
		Out  string
		Err  error
	}{
		{
			Name: "basic-dhcpd6.conf",
			In: TemplateData{
				GlobalDHCPSnippets: []DhcpSnippet{
					{
						Name:        "test-global-dhcp-snippet",
						Description: "test",
					},
				},
				FailoverPeers: []FailoverPeer{
					{
						Name:        "test-primary",
						Mode:        "primary",
						Address:     "ffff:ffff::1",
						PeerAddress: "ffff:ffff::2",
					}, {
						Name:        "test-secondary",
						Mode:        "secondary",
						Address:     "ffff:ffff::2",
						PeerAddress: "ffff:ffff::1",
					},
				},
				SharedNetworks: []SharedNetwork{
					{
						Name: "test-shared-network",
						Subnets: []Subnet{
							{
								Subnet:         "ffff:ffff::/64",
								CIDR:           "ffff:ffff::/64",
								NextServer:     "ffff:ffff::1",
								DNSServers:     []string{"ffff:ffff::1"},
								DomainName:     "maas",
								SearchList:     []string{"maas"},
								RouterIP:       "ffff:ffff::1",
								NTPServersIPv4: "10.0.0.2",
								NTPServersIPv6: "ffff:ffff::1",
								MTU:            1500,
								Pools: []Pool{
									{
										FailoverPeer: "test-primary",
										IPRangeLow:   "ffff:ffff::4",
										IPRangeHigh:  "ffff:ffff::28",
									},
								},
							},
						},
					},
				},
				Hosts: []Host{
					{
						Host: "test-host.maas",
						MAC:  "de:ad:c0:de:ca:fe",
						IP:   "ffff:ffff::29",
					},
				},
				OMAPIKey: "1234",
			},
			Out: `# fleetd-managed dhcpd6.conf — rebuilt wholesale on every subnet/host change,
# never hand-edited.
authoritative;


# test-global-dhcp-snippet: test




shared-network "test-shared-network" {

	subnet6 ffff:ffff::/64 {
		option dhcp6.name-servers ffff:ffff::1;
		option dhcp6.domain-search "maas";




		pool6 {
			range6 ffff:ffff::4 ffff:ffff::28;
		}



	}

}



host test-host.maas {
	hardware ethernet de:ad:c0:de:ca:fe;

}

`,
		},
	}
	for _, tcase := range table {
		t.Run(tcase.Name, func(tt *testing.T) {
			buf := &bytes.Buffer{}
			err := RenderDhcpd6Conf(buf, tcase.In)
			if err != nil {
				tt.Fatal(err)
			}
			out := buf.String()
			assert.Equal(
				tt,
				strings.ReplaceAll(tcase.Out, "\t", ""),
				strings.ReplaceAll(out, "\t", ""),
			)
		})
	}
}
