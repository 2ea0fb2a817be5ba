package yolov5

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestComputeLetterbox(t *testing.T) {

	tests := []struct {
		name         string
		srcW, srcH   int
		netW, netH   int
		wantF        float64
		wantScaledW  int
		wantScaledH  int
		wantTop      int
		wantBottom   int
		wantLeft     int
		wantRight    int
	}{
		{
			name: "landscape hd",
			srcW: 1280, srcH: 720, netW: 640, netH: 640,
			wantF: 0.5, wantScaledW: 640, wantScaledH: 360,
			wantTop: 140, wantBottom: 140,
		},
		{
			name: "portrait",
			srcW: 800, srcH: 1000, netW: 640, netH: 640,
			wantF: 0.64, wantScaledW: 512, wantScaledH: 640,
			wantLeft: 64, wantRight: 64,
		},
		{
			name: "square no padding",
			srcW: 800, srcH: 800, netW: 640, netH: 640,
			wantF: 0.8, wantScaledW: 640, wantScaledH: 640,
		},
		{
			name: "exact size",
			srcW: 640, srcH: 640, netW: 640, netH: 640,
			wantF: 1.0, wantScaledW: 640, wantScaledH: 640,
		},
		{
			// odd total padding puts the extra pixel on the bottom edge
			name: "odd padding",
			srcW: 100, srcH: 33, netW: 64, netH: 64,
			wantF: 0.64, wantScaledW: 64, wantScaledH: 21,
			wantTop: 21, wantBottom: 22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			lb := computeLetterbox(tt.srcW, tt.srcH, tt.netW, tt.netH)

			if lb.f != tt.wantF {
				t.Errorf("f = %v, want %v", lb.f, tt.wantF)
			}

			if lb.scaledW != tt.wantScaledW || lb.scaledH != tt.wantScaledH {
				t.Errorf("scaled = %dx%d, want %dx%d",
					lb.scaledW, lb.scaledH, tt.wantScaledW, tt.wantScaledH)
			}

			if lb.top != tt.wantTop || lb.bottom != tt.wantBottom {
				t.Errorf("vertical padding = %d/%d, want %d/%d",
					lb.top, lb.bottom, tt.wantTop, tt.wantBottom)
			}

			if lb.left != tt.wantLeft || lb.right != tt.wantRight {
				t.Errorf("horizontal padding = %d/%d, want %d/%d",
					lb.left, lb.right, tt.wantLeft, tt.wantRight)
			}

			// the scaled image plus padding always fills the network size
			if lb.scaledW+lb.left+lb.right != tt.netW {
				t.Errorf("width %d + padding does not fill %d",
					lb.scaledW, tt.netW)
			}

			if lb.scaledH+lb.top+lb.bottom != tt.netH {
				t.Errorf("height %d + padding does not fill %d",
					lb.scaledH, tt.netH)
			}
		})
	}
}

func TestOrderFromFlags(t *testing.T) {

	tests := []struct {
		name    string
		flags   int
		want    colorOrder
		wantErr bool
	}{
		{name: "default is bgr", flags: 0, want: orderBGR},
		{name: "explicit bgr", flags: InputBGR, want: orderBGR},
		{name: "explicit rgb", flags: InputRGB, want: orderRGB},
		{name: "rgb with preprocessor flag", flags: InputRGB | PreprocessorCPU, want: orderRGB},
		{name: "both orders", flags: InputBGR | InputRGB, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			got, err := orderFromFlags(tt.flags)

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
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreprocessorSetupConflictingOrder(t *testing.T) {

	// conflicting color order flags are rejected before any device work,
	// and the failure is logged

	dims := []int32{1, 3, 640, 640}

	pres := map[string]preprocessor{
		"cpu":  newCPUPreprocessor(),
		"cuda": newCUDAPreprocessor(),
	}

	for name, pre := range pres {
		t.Run(name, func(t *testing.T) {

			var buf bytes.Buffer

			pre.setLogger(&ConsoleLogger{Out: &buf, MinLevel: LogDebug})

			err := pre.setup(dims, InputBGR|InputRGB, 1, nil)

			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("setup = %v, want ErrInvalidInput", err)
			}

			if !strings.Contains(buf.String(), "setup failure") {
				t.Errorf("failure not logged, output: %q", buf.String())
			}
		})
	}
}

func TestPreprocessorBaseSlots(t *testing.T) {

	var base preprocessorBase

	base.ensureSlot(2)

	if len(base.transforms) != 3 {
		t.Fatalf("transforms length = %d, want 3", len(base.transforms))
	}

	tf := newTransform(1280, 720, 0.5, 0, 140)
	base.setTransform(1, tf)

	if got := base.transformAt(1); got != tf {
		t.Errorf("transformAt(1) = %v, want %v", got, tf)
	}

	// growing to an existing slot keeps recorded transforms
	base.ensureSlot(1)

	if got := base.transformAt(1); got != tf {
		t.Errorf("transformAt(1) after ensureSlot = %v, want %v", got, tf)
	}
}
