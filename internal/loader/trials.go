package loader

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oncomatch/matchengine/internal/store"
	"github.com/oncomatch/matchengine/internal/trial"
)

// ReadTrials loads trial documents from a curation directory or a single
// file. YAML files are re-encoded to canonical JSON; files that fail to
// decode are skipped with a warning.
func (l *Loader) ReadTrials(path string) ([]*store.TrialDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat trials path: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		files = files[:0]
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(p)) {
			case ".yml", ".yaml", ".json":
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk trials dir: %w", err)
		}
		sort.Strings(files)
	}

	var docs []*store.TrialDoc
	for _, file := range files {
		doc, err := l.readTrialFile(file)
		if err != nil {
			l.logger.Warn("skipping trial file", zap.String("file", file), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *Loader) readTrialFile(path string) (*store.TrialDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := raw
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yml" || ext == ".yaml" {
		var m map[string]any
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode trial yaml: %w", err)
		}
		doc, err = json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode trial json: %w", err)
		}
	}
	t, err := trial.Parse(doc)
	if err != nil {
		return nil, err
	}
	return &store.TrialDoc{ProtocolNo: t.ProtocolNo, NCTID: t.NCTID, Doc: doc}, nil
}
