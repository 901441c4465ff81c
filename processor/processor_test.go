package processor

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/frommie/xmpmetadata/config"
	"github.com/frommie/xmpmetadata/constants"
	"github.com/frommie/xmpmetadata/jpeg"
	"github.com/frommie/xmpmetadata/png"
	"github.com/frommie/xmpmetadata/testutils"
	"github.com/frommie/xmpmetadata/types"
	"github.com/frommie/xmpmetadata/webp"
	"github.com/frommie/xmpmetadata/xmp"
)

func createTestSaver(t *testing.T) *Saver {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Output.Dir = t.TempDir()
	return NewSaver(cfg, nil, false)
}

func testImages(n int) []image.Image {
	images := make([]image.Image, n)
	for i := range images {
		images[i] = testutils.NewTestImage()
	}
	return images
}

// Helper function to check file existence
func checkFileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func TestSaveImagesJPEG(t *testing.T) {
	saver := createTestSaver(t)

	req := SaveRequest{
		ImageType: types.ImageTypeJPEG,
		Fields: map[xmp.Field]types.BatchValue[any]{
			xmp.FieldCreator: types.Scalar[any]("Alice; Bob"),
			xmp.FieldTitle:   types.PerBatch[any]("First", "Second"),
		},
	}

	saved, err := saver.SaveImages(context.Background(), testImages(2), req)
	if err != nil {
		t.Fatalf("SaveImages() error = %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("SaveImages() returned %d images, want 2", len(saved))
	}

	wantTitles := []string{"First", "Second"}
	wantNames := []string{"ComfyUI_00001_.jpg", "ComfyUI_00002_.jpg"}
	for i, s := range saved {
		if s.Filename != wantNames[i] {
			t.Errorf("Filename = %q, want %q", s.Filename, wantNames[i])
		}
		if s.Subfolder != "" || s.Type != constants.OutputType {
			t.Errorf("SavedImage = %+v, want empty subfolder and type output", s)
		}

		result, err := LoadImage(filepath.Join(saver.Config.Output.Dir, s.Filename))
		if err != nil {
			t.Fatalf("LoadImage() error = %v", err)
		}
		if got := result.Metadata.Title(); got != wantTitles[i] {
			t.Errorf("Title() = %q, want %q", got, wantTitles[i])
		}
		if got := result.Metadata.Creator(); got != "Alice, Bob" {
			t.Errorf("Creator() = %q, want %q", got, "Alice, Bob")
		}
	}
}

func TestSaveImagesLosslessWebP(t *testing.T) {
	saver := createTestSaver(t)
	saver.Config.Process.WebpCompression = config.WebpCompressionSpeed

	req := SaveRequest{
		ImageType: types.ImageTypeLosslessWebP,
		Fields: map[xmp.Field]types.BatchValue[any]{
			xmp.FieldTitle:   types.PerBatch[any]("First", "Second"),
			xmp.FieldSubject: types.Scalar[any]("red; orange"),
		},
	}

	saved, err := saver.SaveImages(context.Background(), testImages(2), req)
	if err != nil {
		t.Fatalf("SaveImages() error = %v", err)
	}

	wantTitles := []string{"First", "Second"}
	wantNames := []string{"ComfyUI_00001_.webp", "ComfyUI_00002_.webp"}
	for i, s := range saved {
		if s.Filename != wantNames[i] {
			t.Errorf("Filename = %q, want %q", s.Filename, wantNames[i])
		}

		path := filepath.Join(saver.Config.Output.Dir, s.Filename)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := webp.ExtractXmp(data); err != nil {
			t.Errorf("ExtractXmp() error = %v", err)
		}

		result, err := LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage() error = %v", err)
		}
		if result.Width != 100 || result.Height != 100 {
			t.Errorf("size = %dx%d, want 100x100", result.Width, result.Height)
		}
		if got := result.Metadata.Title(); got != wantTitles[i] {
			t.Errorf("Title() = %q, want %q", got, wantTitles[i])
		}
		if got := result.Metadata.Subject(); got != "red, orange" {
			t.Errorf("Subject() = %q, want %q", got, "red, orange")
		}
	}
}

func TestSaveImagesFileNames(t *testing.T) {
	tests := []struct {
		name          string
		prefix        string
		existing      []string
		wantNames     []string
		wantSubfolder string
	}{
		{
			name:      "Default prefix",
			wantNames: []string{"ComfyUI_00001_.png"},
		},
		{
			name:          "Sub folder and batch number",
			prefix:        "renders/img_%batch_num%",
			wantNames:     []string{"img_0_00001_.png", "img_1_00002_.png"},
			wantSubfolder: "renders",
		},
		{
			name:      "Counter continues after existing files",
			prefix:    "img",
			existing:  []string{"img_00007_.png"},
			wantNames: []string{"img_00008_.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := createTestSaver(t)
			for _, name := range tt.existing {
				if err := os.WriteFile(filepath.Join(saver.Config.Output.Dir, name), []byte("test"), 0644); err != nil {
					t.Fatalf("Setup failed: %v", err)
				}
			}

			saved, err := saver.SaveImages(context.Background(), testImages(len(tt.wantNames)), SaveRequest{Prefix: tt.prefix})
			if err != nil {
				t.Fatalf("SaveImages() error = %v", err)
			}
			for i, s := range saved {
				if s.Filename != tt.wantNames[i] {
					t.Errorf("Filename = %q, want %q", s.Filename, tt.wantNames[i])
				}
				if s.Subfolder != tt.wantSubfolder {
					t.Errorf("Subfolder = %q, want %q", s.Subfolder, tt.wantSubfolder)
				}
				path := filepath.Join(saver.Config.Output.Dir, filepath.FromSlash(s.Subfolder), s.Filename)
				if !checkFileExists(t, path) {
					t.Errorf("file %s does not exist", path)
				}
			}
		})
	}
}

func TestSaveImagesPNGTextChunks(t *testing.T) {
	tests := []struct {
		name         string
		imageType    types.ImageType
		wantWorkflow bool
	}{
		{name: "PNG with workflow", imageType: types.ImageTypePNGWithWorkflow, wantWorkflow: true},
		{name: "Plain PNG", imageType: types.ImageTypePNG, wantWorkflow: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := createTestSaver(t)
			req := SaveRequest{
				ImageType: tt.imageType,
				Fields: map[xmp.Field]types.BatchValue[any]{
					xmp.FieldSubject: types.Scalar[any]("red, orange, red"),
				},
				Prompt:       map[string]any{"3": map[string]any{"class_type": "KSampler"}},
				ExtraPngInfo: map[string]any{"workflow": map[string]any{"nodes": []any{}}},
			}

			saved, err := saver.SaveImages(context.Background(), testImages(1), req)
			if err != nil {
				t.Fatalf("SaveImages() error = %v", err)
			}

			data, err := os.ReadFile(filepath.Join(saver.Config.Output.Dir, saved[0].Filename))
			if err != nil {
				t.Fatal(err)
			}
			texts, err := png.TextChunks(data)
			if err != nil {
				t.Fatalf("TextChunks() error = %v", err)
			}

			_, hasPrompt := texts[constants.PngPromptKeyword]
			_, hasWorkflow := texts[constants.PngWorkflowKeyword]
			if hasPrompt != tt.wantWorkflow || hasWorkflow != tt.wantWorkflow {
				t.Errorf("prompt chunk = %v, workflow chunk = %v, want %v", hasPrompt, hasWorkflow, tt.wantWorkflow)
			}
			if tt.wantWorkflow {
				if got, want := texts[constants.PngPromptKeyword], `{"3":{"class_type":"KSampler"}}`; got != want {
					t.Errorf("prompt = %q, want %q", got, want)
				}
				if got, want := texts[constants.PngWorkflowKeyword], `{"nodes":[]}`; got != want {
					t.Errorf("workflow = %q, want %q", got, want)
				}
			}

			m, err := xmp.Parse(texts[constants.PngXmpKeyword])
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := m.Subject(); got != "red, orange" {
				t.Errorf("Subject() = %q, want %q", got, "red, orange")
			}
		})
	}
}

func TestSaveImagesXMLOverride(t *testing.T) {
	saver := createTestSaver(t)
	req := SaveRequest{
		ImageType: types.ImageTypeJPEG,
		Fields: map[xmp.Field]types.BatchValue[any]{
			xmp.FieldTitle: types.Scalar[any]("ignored"),
		},
		XML: types.Scalar(testutils.DescriptiveXMP),
	}

	saved, err := saver.SaveImages(context.Background(), testImages(1), req)
	if err != nil {
		t.Fatalf("SaveImages() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(saver.Config.Output.Dir, saved[0].Filename))
	if err != nil {
		t.Fatal(err)
	}
	got, err := jpeg.ExtractXmp(data)
	if err != nil {
		t.Fatalf("ExtractXmp() error = %v", err)
	}
	if got != testutils.DescriptiveXMP {
		t.Errorf("embedded packet = %q, want override", got)
	}
}

func TestSaveImagesErrors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		images  []image.Image
		req     SaveRequest
		wantErr error
	}{
		{
			name:    "Empty batch",
			ctx:     context.Background(),
			wantErr: ErrNoImages,
		},
		{
			name:    "Unsupported image type",
			ctx:     context.Background(),
			images:  testImages(1),
			req:     SaveRequest{ImageType: "WebP"},
			wantErr: types.ErrUnsupportedImageType,
		},
		{
			name:   "Per-batch list too short",
			ctx:    context.Background(),
			images: testImages(2),
			req: SaveRequest{Fields: map[xmp.Field]types.BatchValue[any]{
				xmp.FieldTitle: types.PerBatch[any]("only one"),
			}},
			wantErr: types.ErrBatchIndex,
		},
		{
			name:   "Invalid field type",
			ctx:    context.Background(),
			images: testImages(1),
			req: SaveRequest{Fields: map[xmp.Field]types.BatchValue[any]{
				xmp.FieldRights: types.Scalar[any](42),
			}},
			wantErr: xmp.ErrInvalidFieldType,
		},
		{
			name:   "Control character in value",
			ctx:    context.Background(),
			images: testImages(1),
			req: SaveRequest{Fields: map[xmp.Field]types.BatchValue[any]{
				xmp.FieldTitle: types.Scalar[any]("a\x01b"),
			}},
			wantErr: xmp.ErrInvalidFieldValue,
		},
		{
			name:    "Cancelled context",
			ctx:     cancelled,
			images:  testImages(1),
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := createTestSaver(t)
			if _, err := saver.SaveImages(tt.ctx, tt.images, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("SaveImages() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildPacket(t *testing.T) {
	req := SaveRequest{
		Fields: map[xmp.Field]types.BatchValue[any]{
			xmp.FieldDescription: types.PerBatch[any]("a", nil),
			xmp.FieldComment:     types.Scalar[any]("shared"),
			xmp.FieldAltText:     {},
		},
	}

	m, packet, err := BuildPacket(req, 1)
	if err != nil {
		t.Fatalf("BuildPacket() error = %v", err)
	}
	if _, ok := m.Get(xmp.FieldDescription); ok {
		t.Error("Description set, want unset for nil batch value")
	}
	if got := m.Comment(); got != "shared" {
		t.Errorf("Comment() = %q, want %q", got, "shared")
	}

	parsed, err := xmp.Parse(packet)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.Equal(m) {
		t.Errorf("packet does not round trip: %v", parsed)
	}
}

func TestSaveImagesSidecar(t *testing.T) {
	saver := createTestSaver(t)
	saver.Config.Output.Sidecar = true

	req := SaveRequest{
		ImageType: types.ImageTypePNG,
		Fields: map[xmp.Field]types.BatchValue[any]{
			xmp.FieldAltText: types.Scalar[any]("A red sunset over the sea"),
		},
	}
	saved, err := saver.SaveImages(context.Background(), testImages(1), req)
	if err != nil {
		t.Fatalf("SaveImages() error = %v", err)
	}

	path := xmp.SidecarPath(filepath.Join(saver.Config.Output.Dir, saved[0].Filename))
	m, _, err := xmp.ReadSidecar(path)
	if err != nil {
		t.Fatalf("ReadSidecar() error = %v", err)
	}
	if got := m.AltText(); got != "A red sunset over the sea" {
		t.Errorf("AltText() = %q, want %q", got, "A red sunset over the sea")
	}
}
