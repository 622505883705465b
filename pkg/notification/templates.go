package notification

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"
)

// TemplateUserAllowed is the template id of the mail sent to a user newly
// added to a resource allow-list.
const TemplateUserAllowed = "restricted_user_allowed"

const defaultUserAllowedTemplate = `Dear {{.user_name}},

You have been granted access to the restricted resource "{{.resource_name}}".

Resource page: {{.resource_link}}
Direct link:   {{.resource_url}}

Best regards,
The {{.site_title}} team
{{.site_url}}
`

var builtinTemplates = map[string]string{
	TemplateUserAllowed: defaultUserAllowedTemplate,
}

// TemplateSource renders notification mail bodies. Templates are looked up
// as <id>.txt in the template directory; when the file is absent the
// built-in default for that id is used.
type TemplateSource struct {
	fs  afero.Fs
	dir string
}

// NewTemplateSource creates a TemplateSource over the given filesystem. An
// empty dir serves built-in templates only.
func NewTemplateSource(fs afero.Fs, dir string) *TemplateSource {
	return &TemplateSource{fs: fs, dir: dir}
}

// Render loads and executes the template with the given variables.
func (s *TemplateSource) Render(id string, vars map[string]interface{}) (string, error) {
	text, err := s.load(id)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(id).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %q: %w", id, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", id, err)
	}
	return buf.String(), nil
}

func (s *TemplateSource) load(id string) (string, error) {
	if s.dir != "" {
		path := filepath.Join(s.dir, id+".txt")
		data, err := afero.ReadFile(s.fs, path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading template %q: %w", path, err)
		}
	}

	text, ok := builtinTemplates[id]
	if !ok {
		return "", fmt.Errorf("unknown template %q", id)
	}
	return text, nil
}
