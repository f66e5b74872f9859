package images

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// I_ImageRepo is the metadata store: the whole record list is read and
// rewritten on every mutation. The list is authoritative for which
// images exist; blobs are best-effort synchronized to it.
type I_ImageRepo interface {
	LoadImages() []*ImageRecord
	SaveImages(list []*ImageRecord) error
}

type JSONImageRepo struct {
	path string
}

func NewJSONImageRepo(path string) (I_ImageRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating metadata directory: %s", err.Error())
	}
	return &JSONImageRepo{path}, nil
}

// LoadImages never fails: an absent, unreadable or malformed file is
// logged and treated as an empty store.
func (me *JSONImageRepo) LoadImages() []*ImageRecord {
	data, err := os.ReadFile(me.path)
	if err != nil {
		if !os.IsNotExist(err) {
			Logger.Error(err, "error reading metadata file, treating as empty", "path", me.path)
		}
		return []*ImageRecord{}
	}

	var list []*ImageRecord
	if err := json.Unmarshal(data, &list); err != nil {
		Logger.Error(err, "metadata file is malformed, treating as empty", "path", me.path)
		return []*ImageRecord{}
	}
	if list == nil {
		list = []*ImageRecord{}
	}
	return list
}

// SaveImages writes the full list through a temp file and renames it
// over the old one, so a reader never observes a partial file.
func (me *JSONImageRepo) SaveImages(list []*ImageRecord) error {
	if list == nil {
		list = []*ImageRecord{}
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding metadata: %s", err.Error())
	}

	tmp, err := os.CreateTemp(filepath.Dir(me.path), ".images-*.json")
	if err != nil {
		return fmt.Errorf("error creating temp metadata file: %s", err.Error())
	}
	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("error writing metadata: %s", err.Error())
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error closing metadata file: %s", err.Error())
	}

	if err = os.Rename(tmpPath, me.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error replacing metadata file: %s", err.Error())
	}
	return nil
}
