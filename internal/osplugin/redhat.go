package osplugin

import (
	"bytes"
	"fmt"

	"fleetd/internal/objects"
)

// RedhatOSPlugin grounds RedhatInterface from original_source/xcat3/
// plugins/os/redhat/redhat.py: inst.ks/inst.repo kernel parameters and a
// kickstart file rendered from the node's package list.
type RedhatOSPlugin struct {
	cfg     Config
	pkgList string
}

func NewRedhatOSPlugin(cfg Config, pkgList string) *RedhatOSPlugin {
	return &RedhatOSPlugin{cfg: cfg, pkgList: pkgList}
}

func (p *RedhatOSPlugin) Name() string { return "redhat" }

func (p *RedhatOSPlugin) Validate(node *objects.Node, osimage *objects.OSImage) error {
	if osimage.Distro == "" || osimage.Ver == "" || osimage.Arch == "" {
		return fmt.Errorf("osplugin: osimage missing distro/ver/arch")
	}
	return nil
}

func (p *RedhatOSPlugin) BuildOSBootStr(node *objects.Node, osimage *objects.OSImage) (string, error) {
	mirror := p.cfg.mirror(osimage)
	return fmt.Sprintf("inst.ks=http://%s/install/autoinst/%s inst.repo=http://%s/install/%s",
		p.cfg.APIHostIP, node.Name, p.cfg.APIHostIP, mirror), nil
}

func (p *RedhatOSPlugin) BuildTemplate(node *objects.Node, osimage *objects.OSImage, passwdHash string) error {
	if err := p.cfg.ensureDirs(); err != nil {
		return err
	}
	buf := &bytes.Buffer{}
	err := render(buf, "templates/kickstart.tmpl.template", templateData{
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

func (p *RedhatOSPlugin) Clean(node *objects.Node) error {
	return cleanAutoinst(p.cfg.autoinstPath(node))
}
