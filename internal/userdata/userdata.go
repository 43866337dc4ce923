// Package userdata assembles the cloud-init payload attached at instance
// creation time. The payload is one-shot: it is never re-sent on start or
// stop, and the rest of the tool treats it as an opaque string.
package userdata

import (
	"fmt"
	"strings"
	"text/template"
)

// Params are the named placeholders substituted into the cloud-init template.
type Params struct {
	// User is the remote login account the tooling is installed for.
	User string
	// TailscaleAuthKey, when set, joins the instance to the mesh
	// automatically on first boot. When empty the join step is skipped and a
	// manual instruction is written to the MOTD instead.
	TailscaleAuthKey string
	// NodeMajor selects the Node.js major version installed via NodeSource.
	NodeMajor int
	// Packages are the npm packages installed globally after Node, typically
	// the AI CLI tools the box exists to run.
	Packages []string
}

func (p *Params) applyDefaults() {
	if p.User == "" {
		p.User = "ubuntu"
	}
	if p.NodeMajor == 0 {
		p.NodeMajor = 22
	}
	if len(p.Packages) == 0 {
		p.Packages = []string{"openclaw", "@anthropic-ai/claude-code"}
	}
}

var ErrBuild = fmt.Errorf("failed to build cloud-init user data")

// Build renders the cloud-init payload. A failure here is fatal to the
// provisioning path before any remote resource is created.
func Build(params Params) (string, error) {
	params.applyDefaults()
	var b strings.Builder
	if err := cloudInitTemplate.Execute(&b, params); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}
	return b.String(), nil
}

var cloudInitTemplate = template.Must(template.New("cloud-init").Parse(`#cloud-config
package_update: true
packages:
  - zsh
  - git
  - build-essential

runcmd:
  - chsh -s /usr/bin/zsh {{.User}}
  - curl -fsSL https://tailscale.com/install.sh | sh
{{- if .TailscaleAuthKey}}
  - tailscale up --authkey={{.TailscaleAuthKey}} --ssh
{{- else}}
  - echo 'Run "sudo tailscale up --ssh" to join the mesh.' >> /etc/motd
{{- end}}
  - curl -fsSL https://deb.nodesource.com/setup_{{.NodeMajor}}.x | bash -
  - apt-get install -y nodejs
{{- range .Packages}}
  - npm install -g {{.}}
{{- end}}
`))
