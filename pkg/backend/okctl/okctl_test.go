package okctl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const echoArgv = "#!/bin/sh\necho \"$@\"\n"

// fakeBinDir writes executable scripts into a temp dir and returns it.
func fakeBinDir(t *testing.T, scripts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}
	return dir
}

func prependPath(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// installFakeOkctl puts an okctl script on PATH that echoes its argv, so
// tests can assert the exact command line without the real binary.
func installFakeOkctl(t *testing.T) {
	t.Helper()
	prependPath(t, fakeBinDir(t, map[string]string{"okctl": echoArgv}))
}

// installPollingOkctl echoes argv for most subcommands but answers list
// subcommands with a fixed status line, which drives the readiness wait.
func installPollingOkctl(t *testing.T, listOutput string) {
	t.Helper()
	script := fmt.Sprintf("#!/bin/sh\nif [ \"$2\" = \"list\" ]; then\n  echo %q\n  exit 0\nfi\necho \"$@\"\n", listOutput)
	prependPath(t, fakeBinDir(t, map[string]string{"okctl": script}))
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(config.Okctl{}, nil)
	b.PollAttempts = 2
	b.PollInterval = time.Millisecond
	return b
}

func invoke(t *testing.T, b *Backend, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	for _, tl := range b.Tools() {
		if tl.Describe().Name == name {
			return tl.Invoke(context.Background(), args)
		}
	}
	t.Fatalf("tool %q not in catalog", name)
	return nil, nil
}

func argvOf(t *testing.T, out map[string]any) string {
	t.Helper()
	s, ok := out["output"].(string)
	if !ok {
		t.Fatalf("payload missing output: %+v", out)
	}
	return strings.TrimSpace(s)
}

func TestShowClusterArgs(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "show_cluster", map[string]any{"cluster_name": "obdemo"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "cluster show obdemo -n default" {
		t.Fatalf("argv = %q", got)
	}
}

func TestScaleClusterJoinsZonesFlag(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "scale_cluster", map[string]any{"cluster_name": "obdemo", "zones": "z1=2"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "cluster scale obdemo -n default --zones=z1=2" {
		t.Fatalf("argv = %q", got)
	}
}

func TestScaleClusterRejectsBadZones(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	_, err := invoke(t, b, "scale_cluster", map[string]any{"cluster_name": "obdemo", "zones": "z1=1;rm"})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %v", err)
	}
}

func TestShowClusterRejectsBadName(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	_, err := invoke(t, b, "show_cluster", map[string]any{"cluster_name": "ob demo"})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %v", err)
	}
}

func TestCreateClusterWaitsUntilRunning(t *testing.T) {
	installPollingOkctl(t, "obdemo 3-3-3 running")
	b := newTestBackend(t)

	out, err := invoke(t, b, "create_cluster", map[string]any{
		"cluster_name": "obdemo",
		"image":        "oceanbase/oceanbase-cloud-native:4.2.1",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	got := argvOf(t, out)
	if !strings.Contains(got, "cluster create obdemo -n default --image oceanbase/oceanbase-cloud-native:4.2.1") {
		t.Fatalf("create argv missing from output: %q", got)
	}
	if !strings.Contains(got, "cluster obdemo is created and ready") {
		t.Fatalf("readiness note missing from output: %q", got)
	}
}

func TestCreateClusterWarnsWhenNeverRunning(t *testing.T) {
	installPollingOkctl(t, "obdemo 3-3-3 creating")
	b := newTestBackend(t)

	out, err := invoke(t, b, "create_cluster", map[string]any{"cluster_name": "obdemo"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); !strings.Contains(got, "warning: cluster obdemo was created but did not report running in time") {
		t.Fatalf("warning missing from output: %q", got)
	}
}

func TestCreateTenantArgs(t *testing.T) {
	installPollingOkctl(t, "t1 running")
	b := newTestBackend(t)

	out, err := invoke(t, b, "create_tenant", map[string]any{
		"tenant_name": "t1",
		"cluster":     "obdemo",
		"priority":    "zone1=1",
		"restore":     true,
		"unit_number": 2,
		"unlimited":   false,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	got := argvOf(t, out)
	if !strings.Contains(got, "tenant create t1 --cluster=obdemo -n default --priority zone1=1 -r --unit-number 2 --unlimited false") {
		t.Fatalf("create argv missing from output: %q", got)
	}
	if !strings.Contains(got, "tenant t1 is created and ready") {
		t.Fatalf("readiness note missing from output: %q", got)
	}
}

func TestCreateTenantRequiresPriority(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	_, err := invoke(t, b, "create_tenant", map[string]any{"tenant_name": "t1", "cluster": "obdemo"})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %v", err)
	}
	if !strings.Contains(err.Error(), "priority") {
		t.Fatalf("error should name priority: %v", err)
	}
}

func TestCreateStandbyTenantRequiresRootPassword(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	_, err := invoke(t, b, "create_tenant", map[string]any{
		"tenant_name": "t2",
		"cluster":     "obdemo",
		"priority":    "zone1=1",
		"from_tenant": "t1",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %v", err)
	}
	if !strings.Contains(err.Error(), "root_password") {
		t.Fatalf("error should name root_password: %v", err)
	}
}

func TestChangeTenantPasswordArgs(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "change_tenant_password", map[string]any{
		"tenant_name": "t1",
		"password":    "s3cret",
		"force":       true,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "tenant changepwd t1 --password=s3cret -n default -f" {
		t.Fatalf("argv = %q", got)
	}
}

func TestReplayTenantLogAlwaysCarriesUnlimited(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "replay_tenant_log", map[string]any{"tenant_name": "t1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "tenant replaylog t1 -n default --unlimited true" {
		t.Fatalf("argv = %q", got)
	}
}

func TestListTenantsReportsEmpty(t *testing.T) {
	prependPath(t, fakeBinDir(t, map[string]string{"okctl": "#!/bin/sh\nexit 0\n"}))
	b := newTestBackend(t)

	out, err := invoke(t, b, "list_tenants", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "no tenants found" {
		t.Fatalf("output = %q", got)
	}
}

func TestShowBackupPolicyJobType(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "show_backup_policy", map[string]any{"tenant_name": "t1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "backup-policy show t1 -n default" {
		t.Fatalf("argv = %q", got)
	}

	out, err = invoke(t, b, "show_backup_policy", map[string]any{
		"tenant_name": "t1",
		"job_type":    "FULL",
		"limit":       5,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "backup-policy show t1 -n default -t FULL --limit 5" {
		t.Fatalf("argv = %q", got)
	}
}

func TestCreateBackupPolicyArgs(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "create_backup_policy", map[string]any{
		"tenant_name":   "t1",
		"dest_type":     "NFS",
		"full":          "0 0 * * 4,5",
		"job_keep_days": 7,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "backup-policy create t1 -n default --dest-type NFS --full 0 0 * * 4,5 --job-keep-days 7" {
		t.Fatalf("argv = %q", got)
	}
}

func TestInstallComponentRejectsUnknown(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	_, err := invoke(t, b, "install_component", map[string]any{"component_name": "nginx"})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %v", err)
	}
}

func TestInstallComponentArgs(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "install_component", map[string]any{
		"component_name": "ob-dashboard",
		"version":        "2.0.0",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "install ob-dashboard --version 2.0.0" {
		t.Fatalf("argv = %q", got)
	}
}

func TestCheckComponentInstalled(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "check_component_installed", map[string]any{"component_name": "okctl"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out["installed"] != true {
		t.Fatalf("okctl should be found on PATH: %+v", out)
	}
}

func TestCheckObOperatorNotInstalled(t *testing.T) {
	prependPath(t, fakeBinDir(t, map[string]string{"kubectl": "#!/bin/sh\nexit 1\n"}))
	b := newTestBackend(t)

	out, err := invoke(t, b, "check_component_installed", map[string]any{"component_name": "ob-operator"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out["installed"] != false {
		t.Fatalf("ob-operator should not be reported installed: %+v", out)
	}
}

func TestInstallOkctlShortCircuits(t *testing.T) {
	installFakeOkctl(t)
	b := newTestBackend(t)

	out, err := invoke(t, b, "install_okctl", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "okctl is already installed" {
		t.Fatalf("output = %q", got)
	}
}

func TestInstallOkctlRunsPipeline(t *testing.T) {
	dir := fakeBinDir(t, map[string]string{
		"curl":  echoArgv,
		"bash":  echoArgv,
		"chmod": echoArgv,
		"mv":    echoArgv,
	})
	// PATH holds only the fakes, so the okctl lookup fails and the
	// download pipeline runs.
	t.Setenv("PATH", dir)
	b := newTestBackend(t)

	out, err := invoke(t, b, "install_okctl", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := argvOf(t, out); got != "okctl installed" {
		t.Fatalf("output = %q", got)
	}
}

func TestCatalogRegisters(t *testing.T) {
	b := newTestBackend(t)
	reg := tool.NewRegistry()
	for _, tl := range b.Tools() {
		if err := reg.Register(tl); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	want := []string{
		"activate_tenant", "change_tenant_password", "check_component_installed",
		"create_backup_policy", "create_cluster", "create_tenant",
		"delete_backup_policy", "delete_cluster", "delete_tenant",
		"install_component", "install_ob_operator", "install_okctl",
		"list_all_clusters", "list_backup_policies", "list_tenants",
		"pause_backup_policy", "replay_tenant_log", "resume_backup_policy",
		"scale_cluster", "scale_tenant", "show_backup_policy",
		"show_cluster", "show_tenant", "switchover_tenant",
		"update_backup_policy", "update_cluster", "update_component",
		"update_tenant", "upgrade_cluster", "upgrade_tenant",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("catalog has %d tools, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("catalog = %v, want %v", got, want)
		}
	}
}
