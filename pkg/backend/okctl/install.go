package okctl

import (
	"context"
	"os/exec"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const (
	okctlInstallScript = "https://raw.githubusercontent.com/oceanbase/ob-operator/master/scripts/install-okctl.sh"
	obOperatorManifest = "https://raw.githubusercontent.com/oceanbase/ob-operator/stable/deploy/operator.yaml"
)

func (b *Backend) installTools() []tool.Tool {
	return []tool.Tool{
		b.checkComponentInstalledTool(),
		b.installOkctlTool(),
		b.installObOperatorTool(),
	}
}

func (b *Backend) okctlInstalled() bool {
	_, err := exec.LookPath("okctl")
	return err == nil
}

func (b *Backend) operatorInstalled(ctx context.Context) bool {
	_, err := b.runner.Run(ctx, "kubectl", "get", "deployment", "-n", "oceanbase", "ob-operator")
	return err == nil
}

func (b *Backend) checkComponentInstalledTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "check_component_installed",
			Description: "Check whether okctl or ob-operator is installed. Run this before the other tools on a fresh environment.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"component_name": tool.StringEnum("Component to check", "okctl", "ob-operator"),
			}, "component_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, _ := tool.StringArg(args, "component_name")
			installed := false
			switch name {
			case "okctl":
				installed = b.okctlInstalled()
			case "ob-operator":
				installed = b.operatorInstalled(ctx)
			}
			return map[string]any{"component": name, "installed": installed}, nil
		},
	}
}

func (b *Backend) installOkctlTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "install_okctl",
			Description: "Download and install the okctl binary into /usr/local/bin.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if b.okctlInstalled() {
				return map[string]any{"output": "okctl is already installed"}, nil
			}
			b.logger.Info("installing okctl")
			script, err := b.runner.Run(ctx, "curl", "-sL", okctlInstallScript)
			if err != nil {
				return nil, err
			}
			if _, err := b.runner.Run(ctx, "bash", "-c", script); err != nil {
				return nil, err
			}
			if _, err := b.runner.Run(ctx, "chmod", "+x", "./okctl"); err != nil {
				return nil, err
			}
			if _, err := b.runner.Run(ctx, "mv", "./okctl", "/usr/local/bin"); err != nil {
				return nil, err
			}
			b.logger.Info("okctl installed")
			return map[string]any{"output": "okctl installed"}, nil
		},
	}
}

func (b *Backend) installObOperatorTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "install_ob_operator",
			Description: "Install ob-operator into the cluster by applying its release manifest.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if b.operatorInstalled(ctx) {
				return map[string]any{"output": "ob-operator is already installed"}, nil
			}
			b.logger.Info("installing ob-operator", zap.String("manifest", obOperatorManifest))
			if _, err := b.runner.Run(ctx, "kubectl", "apply", "-f", obOperatorManifest); err != nil {
				return nil, err
			}
			return map[string]any{"output": "ob-operator installed"}, nil
		},
	}
}
