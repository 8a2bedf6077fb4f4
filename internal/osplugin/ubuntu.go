package osplugin

import (
	"bytes"
	"fmt"

	"fleetd/internal/objects"
)

// UbuntuOSPlugin grounds UbuntuInterface from original_source/xcat3/
// plugins/os/ubuntu/ubuntu.py: a preseed file plus a url= kernel
// parameter pointing at it, instead of redhat's inst.ks/inst.repo pair.
type UbuntuOSPlugin struct {
	cfg     Config
	pkgList string
}

func NewUbuntuOSPlugin(cfg Config, pkgList string) *UbuntuOSPlugin {
	return &UbuntuOSPlugin{cfg: cfg, pkgList: pkgList}
}

func (p *UbuntuOSPlugin) Name() string { return "ubuntu" }

func (p *UbuntuOSPlugin) Validate(node *objects.Node, osimage *objects.OSImage) error {
	if osimage.Distro == "" || osimage.Ver == "" || osimage.Arch == "" {
		return fmt.Errorf("osplugin: osimage missing distro/ver/arch")
	}
	return nil
}

func (p *UbuntuOSPlugin) BuildOSBootStr(node *objects.Node, osimage *objects.OSImage) (string, error) {
	return fmt.Sprintf("auto=true priority=critical url=http://%s/install/autoinst/%s",
		p.cfg.APIHostIP, node.Name), nil
}

func (p *UbuntuOSPlugin) BuildTemplate(node *objects.Node, osimage *objects.OSImage, passwdHash string) error {
	if err := p.cfg.ensureDirs(); err != nil {
		return err
	}
	buf := &bytes.Buffer{}
	err := render(buf, "templates/preseed.tmpl.template", templateData{
		APIHostIP:  p.cfg.APIHostIP,
		APIPort:    p.cfg.APIPort,
		Mirror:     p.cfg.mirror(osimage),
		Timezone:   p.cfg.Timezone,
		PkgList:    p.pkgList,
		PasswdHash: passwdHash,
		Node:       node.Name,
	})
	if err != nil {
		return err
	}
	return writeAutoinst(p.cfg.autoinstPath(node), buf.String())
}

func (p *UbuntuOSPlugin) Clean(node *objects.Node) error {
	return cleanAutoinst(p.cfg.autoinstPath(node))
}
