// Package osplugin implements the OS plugin contract (C3): per-distro
// kernel command-line composition and kickstart/preseed rendering.
//
// Grounded on original_source/xcat3/plugins/os/{base,redhat/redhat,
// ubuntu/ubuntu}.py for the responsibilities (build_os_boot_str, render,
// and the install_dir/scripts directory, which is created on first use;
// this package writes no post-install script into it) and
// on rackd_spike/internal/templates/template.go for the Go rendering
// idiom: compiled-in templates via go:embed, executed with text/template
// rather than parsed from disk, so a missing template file can never be a
// runtime surprise.
package osplugin

import (
	"embed"
	"io"
	"text/template"
)

//go:embed templates/kickstart.tmpl.template
//go:embed templates/preseed.tmpl.template
var tmpls embed.FS

type templateData struct {
	APIHostIP  string
	APIPort    int
	Mirror     string
	Timezone   string
	PkgList    string
	PasswdHash string
	Node       string
}

func render(dest io.Writer, fileName string, data templateData) error {
	tmpl, err := template.ParseFS(tmpls, fileName)
	if err != nil {
		return err
	}
	return tmpl.Execute(dest, data)
}
