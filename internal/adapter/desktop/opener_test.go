package desktop

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

type recordingRunner struct {
	name string
	args []string
	res  *port.CommandResult
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) (*port.CommandResult, error) {
	r.name = name
	r.args = args
	if r.res == nil {
		r.res = &port.CommandResult{}
	}
	return r.res, r.err
}

func TestOpener_Commands(t *testing.T) {
	tests := []struct {
		goos     string
		reveal   bool
		wantName string
		wantArgs []string
	}{
		{"linux", false, "xdg-open", []string{"https://ollama.com/download"}},
		{"darwin", false, "open", []string{"https://ollama.com/download"}},
		{"windows", false, "rundll32", []string{"url.dll,FileProtocolHandler", "https://ollama.com/download"}},
		{"linux", true, "xdg-open", []string{"/data/downloads"}},
		{"darwin", true, "open", []string{"-R", "/data/downloads/OllamaSetup.exe"}},
		{"windows", true, "explorer", []string{"/select,/data/downloads/OllamaSetup.exe"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.wantName, func(t *testing.T) {
			r := &recordingRunner{}
			o := &Opener{runner: r, goos: tt.goos, logger: zap.NewNop()}

			var err error
			if tt.reveal {
				err = o.RevealFile(context.Background(), "/data/downloads/OllamaSetup.exe")
			} else {
				err = o.OpenURL(context.Background(), "https://ollama.com/download")
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.name != tt.wantName || !reflect.DeepEqual(r.args, tt.wantArgs) {
				t.Errorf("ran %s %v, want %s %v", r.name, r.args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestOpener_Errors(t *testing.T) {
	o := &Opener{runner: &recordingRunner{err: errors.New("spawn failed")}, goos: "linux", logger: zap.NewNop()}
	if err := o.OpenURL(context.Background(), "https://x"); err == nil {
		t.Error("expected spawn error")
	}

	o = &Opener{runner: &recordingRunner{res: &port.CommandResult{ExitCode: 4}}, goos: "linux", logger: zap.NewNop()}
	if err := o.OpenURL(context.Background(), "https://x"); err == nil {
		t.Error("expected non-zero exit error")
	}

	o = &Opener{runner: &recordingRunner{res: &port.CommandResult{ExitCode: 1}}, goos: "windows", logger: zap.NewNop()}
	if err := o.RevealFile(context.Background(), `C:\x.exe`); err != nil {
		t.Errorf("explorer exit 1 should be tolerated, got %v", err)
	}
}
