package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func stub(name, comment string) string {
	return "name: " + name + "\nresource: ec2\ncomment: " + comment + "\n"
}

func TestReadDirectory(t *testing.T) {
	assertion := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ec2-stop.yml"), stub("ec2-stop", "stop instances"))
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")

	set, err := ReadDirectory(dir)
	assertion.NoError(err)
	assertion.Equal([]string{"ec2-stop"}, set.Names())
	assertion.Equal("stop instances", set["ec2-stop"].Comment())

	// missing directories are empty
	set, err = ReadDirectory(filepath.Join(dir, "nope"))
	assertion.NoError(err)
	assertion.Empty(set)

	writeFile(t, filepath.Join(dir, "wrong-name.yml"), stub("other-name", "x"))
	_, err = ReadDirectory(dir)
	var readErr ReadError
	assertion.ErrorAs(err, &readErr)
	assertion.Contains(readErr.Error(), "other-name")
}

func TestReadDirectoryInvalidYAML(t *testing.T) {
	assertion := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.yml"), "name: [unclosed\n")
	_, err := ReadDirectory(dir)
	assertion.Error(err)
}

func layeredTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shared", "common", "tagging.yml"), stub("tagging", "shared"))
	writeFile(t, filepath.Join(root, "team", "common", "tagging.yml"), stub("tagging", "team"))
	writeFile(t, filepath.Join(root, "app", "common", "tagging.yml"), stub("tagging", "app"))
	writeFile(t, filepath.Join(root, "shared", "common", "only-shared.yml"), stub("only-shared", "shared common"))
	writeFile(t, filepath.Join(root, "shared", "us-east-1", "only-shared.yml"), stub("only-shared", "shared us-east-1"))
	return root
}

func TestReadSourcePathsOverrideOrder(t *testing.T) {
	assertion := assert.New(t)
	root := layeredTree(t)
	regions := []string{"us-east-1", "us-west-2"}

	sets, err := ReadSourcePaths(root, []string{"shared", "team", "app"}, regions)
	assertion.NoError(err)
	assertion.Equal("app", sets["us-east-1"]["tagging"].Comment())
	assertion.Equal("app", sets["us-west-2"]["tagging"].Comment())
	// region directory overrides common within a path
	assertion.Equal("shared us-east-1", sets["us-east-1"]["only-shared"].Comment())
	assertion.Equal("shared common", sets["us-west-2"]["only-shared"].Comment())

	sets, err = ReadSourcePaths(root, []string{"app", "shared", "team"}, regions)
	assertion.NoError(err)
	assertion.Equal("team", sets["us-east-1"]["tagging"].Comment())
}

func TestReadSourcePathsIsolatesRegions(t *testing.T) {
	assertion := assert.New(t)
	root := layeredTree(t)
	sets, err := ReadSourcePaths(root, []string{"shared"}, []string{"us-east-1", "us-west-2"})
	assertion.NoError(err)
	sets["us-east-1"]["tagging"]["comment"] = "changed"
	assertion.Equal("shared", sets["us-west-2"]["tagging"].Comment())
}

func TestPolicyHelpers(t *testing.T) {
	assertion := assert.New(t)
	p := Policy{"name": "x", "description": "  described  "}
	assertion.Equal("described", p.Comment())
	assertion.Equal("unknown", Policy{"name": "y"}.Comment())
	assertion.Equal("", Policy{}.Name())

	orig := Policy{"name": "x", "filters": []interface{}{map[string]interface{}{"a": "b"}}}
	clone := orig.Clone()
	clone["filters"].([]interface{})[0].(map[string]interface{})["a"] = "c"
	assertion.Equal("b", orig["filters"].([]interface{})[0].(map[string]interface{})["a"])

	set := Set{"b": Policy{"name": "b"}, "a": Policy{"name": "a"}}
	sorted := set.Sorted()
	assertion.Equal("a", sorted[0].Name())
	assertion.Equal("b", sorted[1].Name())
}
