package okctl

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/backend/cliexec"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

// supportedComponents lists what okctl install/update can manage. With no
// component given, okctl installs ob-operator and ob-dashboard.
var supportedComponents = []string{"ob-operator", "ob-dashboard", "local-path-provisioner", "cert-manager"}

func (b *Backend) componentTools() []tool.Tool {
	return []tool.Tool{
		b.installComponentTool(),
		b.updateComponentTool(),
	}
}

// componentArg reads the optional component_name argument and rejects
// components okctl does not manage.
func componentArg(args map[string]any) (string, error) {
	name, ok := tool.StringArg(args, "component_name")
	if !ok || name == "" {
		return "", nil
	}
	for _, c := range supportedComponents {
		if name == c {
			if err := cliexec.ValidateIdentifier(name, "Component name"); err != nil {
				return "", err
			}
			return name, nil
		}
	}
	return "", errmodel.InvalidArguments("component_name", fmt.Sprintf("unsupported component %q", name))
}

func (b *Backend) installComponentTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "install_component",
			Description: "Install an OceanBase component: ob-operator, ob-dashboard, local-path-provisioner or cert-manager. With no component, installs ob-operator and ob-dashboard.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"component_name": tool.StringEnum("Component to install", supportedComponents...),
				"version":        tool.String("Component version"),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := componentArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"install"}
			if name != "" {
				argv = append(argv, name)
			}
			argv = appendFlag(argv, args, "version", "--version")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) updateComponentTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_component",
			Description: "Update an OceanBase component: ob-operator, ob-dashboard, local-path-provisioner or cert-manager. With no component, updates ob-operator and ob-dashboard.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"component_name": tool.StringEnum("Component to update", supportedComponents...),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := componentArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"update"}
			if name != "" {
				argv = append(argv, name)
			}
			return b.run(ctx, argv...)
		},
	}
}
