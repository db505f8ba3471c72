package canvas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/geom"
)

func TestValidatePath(t *testing.T) {
	valid := canvas.Path{
		Id:     "path_1_abcd1234",
		Tool:   canvas.ToolPen,
		Color:  "#ff0000",
		Size:   5,
		Points: []geom.Point{{X: 0, Y: 0}},
	}

	tests := []struct {
		name    string
		mutate  func(p canvas.Path) canvas.Path
		wantErr string
	}{
		{"Valid", func(p canvas.Path) canvas.Path { return p }, ""},
		{"Missing Id", func(p canvas.Path) canvas.Path { p.Id = ""; return p }, "missing element id"},
		{"Invalid Tool", func(p canvas.Path) canvas.Path { p.Tool = 10; return p }, "invalid tool"},
		{"Invalid Color", func(p canvas.Path) canvas.Path { p.Color = "red"; return p }, "invalid color"},
		{"Short Hex Color Valid", func(p canvas.Path) canvas.Path { p.Color = "#000"; return p }, ""},
		{"Color Too Long", func(p canvas.Path) canvas.Path { p.Color = "#ff00000"; return p }, "invalid color"},
		{"Size Too Small", func(p canvas.Path) canvas.Path { p.Size = 0; return p }, "invalid size"},
		{"Size Too Large", func(p canvas.Path) canvas.Path { p.Size = 101; return p }, "invalid size"},
		{"No Points", func(p canvas.Path) canvas.Path { p.Points = nil; return p }, "empty stroke"},
		{
			"Too Many Points",
			func(p canvas.Path) canvas.Path { p.Points = make([]geom.Point, 2049); return p },
			"stroke too long",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := canvas.ValidatePath(tc.mutate(valid))
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestValidateShape(t *testing.T) {
	valid := canvas.Shape{Id: "shape_1_abcd1234", Kind: canvas.ShapeCircle, Color: "#00ff00", Size: 2}

	assert.NoError(t, canvas.ValidateShape(valid))

	bad := valid
	bad.Kind = canvas.ShapeKindCount
	assert.Error(t, canvas.ValidateShape(bad))

	bad = valid
	bad.Id = ""
	assert.Error(t, canvas.ValidateShape(bad))

	bad = valid
	bad.Color = "green"
	assert.Error(t, canvas.ValidateShape(bad))
}

func TestValidateText(t *testing.T) {
	valid := canvas.Text{Id: "text_1_abcd1234", Content: "hi", Color: "#123abc", FontSize: 24}

	assert.NoError(t, canvas.ValidateText(valid))

	bad := valid
	bad.FontSize = 0
	assert.Error(t, canvas.ValidateText(bad))

	bad = valid
	bad.Content = string(make([]byte, 2001))
	assert.Error(t, canvas.ValidateText(bad))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "#abcdef", canvas.NormalizeColor("#abcdef"))
	assert.Equal(t, "#abc", canvas.NormalizeColor("#abc"))
	assert.Equal(t, canvas.DefaultColor, canvas.NormalizeColor("blue"))
	assert.Equal(t, canvas.DefaultColor, canvas.NormalizeColor(""))

	assert.Equal(t, 1.0, canvas.NormalizeSize(0))
	assert.Equal(t, 1.0, canvas.NormalizeSize(-3))
	assert.Equal(t, 100.0, canvas.NormalizeSize(1e9))
	assert.Equal(t, 7.5, canvas.NormalizeSize(7.5))

	assert.Equal(t, 16.0, canvas.NormalizeFontSize(0))
	assert.Equal(t, 24.0, canvas.NormalizeFontSize(24))

	assert.Equal(t, canvas.AnonymousUserId, canvas.NormalizeUserId(""))
	assert.Equal(t, canvas.AnonymousUserId, canvas.NormalizeUserId("   "))
	assert.Equal(t, "u1", canvas.NormalizeUserId("u1"))
}

// FuzzValidatePathJSON feeds random payload bytes through the same
// decode-then-validate path the gateway uses.
func FuzzValidatePathJSON(f *testing.F) {
	f.Add([]byte(`{"id":"path_1_abcd1234","tool":0,"color":"#000000","size":3,"points":[{"x":0,"y":0}]}`))
	f.Add([]byte(`{"id":"","tool":99,"color":"nope","size":-1}`))
	f.Add([]byte(`{bad json`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, input []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("validate panicked with input: %x\npanic: %v", input, r)
			}
		}()

		var p canvas.Path
		if err := json.Unmarshal(input, &p); err != nil {
			return
		}
		_ = canvas.ValidatePath(p)
	})
}
