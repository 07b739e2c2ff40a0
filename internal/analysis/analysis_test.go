package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonDump = `{
  "module": "core",
  "declarations": [
    {"dri": "com.example/~/~/decl/", "name": "com.example", "kind": "package", "children": [
      {"dri": "com.example/Foo/~/decl/", "name": "Foo", "kind": "class", "supertypes": ["kotlin/Any/~/decl/"]}
    ]},
    {"dri": "com.example/Foo/bar()/decl/", "name": "bar", "kind": "function", "links": ["com.example/Foo/~/decl/"]}
  ]
}`

const yamlDump = `module: core
declarations:
  - dri: com.example/~/~/decl/
    name: com.example
    kind: package
  - dri: com.example/Color/~/decl/
    name: Color
    kind: enum
    children:
      - dri: com.example/Color.RED/~/decl/EnumEntry=true
        name: RED
        kind: enum_entry
`

func TestDecodeJSON(t *testing.T) {
	m, err := Decode([]byte(jsonDump), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "core", m.Module)

	flat := m.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, "com.example", flat[0].Name)
	assert.Nil(t, flat[0].Children)
	assert.Equal(t, "Foo", flat[1].Name)
	assert.Equal(t, []string{"kotlin/Any/~/decl/"}, flat[1].Supertypes)
	assert.Equal(t, KindFunction, flat[2].Kind)
	assert.True(t, flat[2].Kind.IsMember())
	assert.Len(t, m.Declarations[0].Children, 1, "Flatten must not modify the module")
}

func TestDecodeYAML(t *testing.T) {
	m, err := Decode([]byte(yamlDump), FormatYAML)
	require.NoError(t, err)

	flat := m.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, KindEnumEntry, flat[2].Kind)
	assert.True(t, flat[1].Kind.IsClasslike())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"declarations": []}`), FormatJSON)
	assert.ErrorContains(t, err, "no module name")

	_, err = Decode([]byte(`{`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte("module: x\nunknown: 1\n"), FormatYAML)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "core.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonDump), 0o644))
	m, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "core", m.Module)

	yamlPath := filepath.Join(dir, "core.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDump), 0o644))
	m, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, m.Flatten(), 3)

	zstPath := filepath.Join(dir, "core.json.zst")
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(zstPath, enc.EncodeAll([]byte(jsonDump), nil), 0o644))
	require.NoError(t, enc.Close())
	m, err = Load(zstPath)
	require.NoError(t, err)
	assert.Len(t, m.Flatten(), 3)

	txtPath := filepath.Join(dir, "core.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte(jsonDump), 0o644))
	_, err = Load(txtPath)
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
