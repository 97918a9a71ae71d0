package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/outofoffice3/custodian-policygen/internal/shared"
	"gopkg.in/yaml.v3"
)

// ReadError reports a policy file that could not be used.
type ReadError struct {
	Path    string
	Message string
}

func (e ReadError) Error() string {
	return "policy file [" + e.Path + "]: " + e.Message
}

// ReadFile decodes one YAML mapping from path.
func ReadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, ReadError{Path: path, Message: err.Error()}
	}
	if p == nil {
		p = Policy{}
	}
	return p, nil
}

// ReadDirectory reads every *.yml file in dir. The policy name must match the
// file name. A missing directory yields an empty set.
func ReadDirectory(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, err
	}
	set := Set{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		name := strings.SplitN(entry.Name(), ".", 2)[0]
		path := filepath.Join(dir, entry.Name())
		p, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if name != "defaults" && p.Name() != name {
			return nil, ReadError{
				Path:    path,
				Message: fmt.Sprintf("contains policy with name %q", p.Name()),
			}
		}
		set[name] = p
	}
	return set, nil
}

// ReadSourcePaths layers the policies of every source path under root, per region.
// Within a path, <region>/ overrides common/; later paths override earlier ones.
func ReadSourcePaths(root string, paths, regions []string) (map[string]Set, error) {
	result := make(map[string]Set, len(regions))
	for _, region := range regions {
		result[region] = Set{}
	}
	for _, path := range paths {
		common, err := ReadDirectory(filepath.Join(root, path, shared.CommonDir))
		if err != nil {
			return nil, err
		}
		for _, region := range regions {
			regional, err := ReadDirectory(filepath.Join(root, path, region))
			if err != nil {
				return nil, err
			}
			result[region].Update(common)
			result[region].Update(regional)
		}
	}
	return result, nil
}
