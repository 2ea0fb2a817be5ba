package yolov5

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {

	path := filepath.Join(t.TempDir(), "config.yaml")

	content := `
engine: /opt/models/yolov5s.engine
classes: /opt/models/coco.txt
scoreThreshold: 0.25
nmsThreshold: 0.45
preprocessor: cuda
colorOrder: rgb
`

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)

	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Engine != "/opt/models/yolov5s.engine" {
		t.Errorf("Engine = %q", cfg.Engine)
	}

	if cfg.Classes != "/opt/models/coco.txt" {
		t.Errorf("Classes = %q", cfg.Classes)
	}

	if cfg.ScoreThreshold == nil || *cfg.ScoreThreshold != 0.25 {
		t.Errorf("ScoreThreshold = %v, want 0.25", cfg.ScoreThreshold)
	}

	if cfg.NMSThreshold == nil || *cfg.NMSThreshold != 0.45 {
		t.Errorf("NMSThreshold = %v, want 0.45", cfg.NMSThreshold)
	}

	flags, err := cfg.DetectorFlags()

	if err != nil {
		t.Fatalf("DetectorFlags: %v", err)
	}

	if flags != PreprocessorCUDA|InputRGB {
		t.Errorf("flags = %d, want %d", flags, PreprocessorCUDA|InputRGB)
	}
}

func TestLoadConfigThresholdPresence(t *testing.T) {

	dir := t.TempDir()

	// an explicit zero threshold is a valid value, distinct from an
	// absent key which keeps the default
	explicit := filepath.Join(dir, "explicit.yaml")

	if err := os.WriteFile(explicit,
		[]byte("engine: a.engine\nscoreThreshold: 0\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(explicit)

	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ScoreThreshold == nil || *cfg.ScoreThreshold != 0 {
		t.Errorf("ScoreThreshold = %v, want explicit 0", cfg.ScoreThreshold)
	}

	absent := filepath.Join(dir, "absent.yaml")

	if err := os.WriteFile(absent,
		[]byte("engine: a.engine\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err = LoadConfig(absent)

	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ScoreThreshold != nil {
		t.Errorf("ScoreThreshold = %v, want nil for absent key",
			*cfg.ScoreThreshold)
	}

	if cfg.NMSThreshold != nil {
		t.Errorf("NMSThreshold = %v, want nil for absent key",
			*cfg.NMSThreshold)
	}
}

func TestLoadConfigMissing(t *testing.T) {

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	if !errors.Is(err, ErrFilesystem) {
		t.Errorf("LoadConfig(missing) = %v, want ErrFilesystem", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {

	path := filepath.Join(t.TempDir(), "bad.yaml")

	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("LoadConfig(bad) = %v, want ErrInvalidInput", err)
	}
}

func TestConfigDetectorFlags(t *testing.T) {

	tests := []struct {
		name    string
		cfg     Config
		want    int
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}, want: InputBGR},
		{name: "auto bgr", cfg: Config{Preprocessor: "auto", ColorOrder: "bgr"}, want: InputBGR},
		{name: "cpu", cfg: Config{Preprocessor: "cpu"}, want: PreprocessorCPU | InputBGR},
		{name: "cuda rgb", cfg: Config{Preprocessor: "cuda", ColorOrder: "rgb"}, want: PreprocessorCUDA | InputRGB},
		{name: "bad preprocessor", cfg: Config{Preprocessor: "npu"}, wantErr: true},
		{name: "bad color order", cfg: Config{ColorOrder: "gray"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			got, err := tt.cfg.DetectorFlags()

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("flags = %d, want %d", got, tt.want)
			}
		})
	}
}
