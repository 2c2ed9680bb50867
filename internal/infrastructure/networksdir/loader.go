package networksdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/infrastructure/secretscan"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// profileFile is the on-disk shape of one <name>.json fragment.
type profileFile struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	NetworkID uint64 `json:"network_id"`
	Protocol  string `json:"protocol"`
	Gas       uint64 `json:"gas"`
	From      string `json:"from"`
	WebSocket bool   `json:"websocket"`
	Signer    *struct {
		CredentialEnv  string `json:"credential_env"`
		CredentialFile string `json:"credential_file"`
	} `json:"signer"`
}

// Source describes where a fragment was loaded from, for duplicate reporting.
type Source struct {
	Profile entity.NetworkProfile
	Path    string
}

// Load reads every <name>.json file in dir. The file stem is the network name.
// Sub-directories and non-JSON files are skipped. A missing directory is an error.
func Load(dir string, logger port.Logger) (map[string]Source, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks directory %s: %w", dir, err)
	}

	loaded := make(map[string]Source)
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".json") {
			logger.Debug("Skipping non-JSON entry in networks directory", "directory", dir, "entry", file.Name())
			continue
		}

		name := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		path := filepath.Join(dir, file.Name())

		if prev, exists := loaded[name]; exists {
			return nil, &entity.DuplicateProfileError{Name: name, Sources: []string{prev.Path, path}}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read network file %s: %w", path, err)
		}
		if findings := secretscan.ScanBytes(data); len(findings) > 0 {
			return nil, &entity.InvalidCredentialError{
				Profile: name,
				Reason:  fmt.Sprintf("%s:%d contains a private key literal; reference it with signer.credential_env instead", path, findings[0].Line),
			}
		}

		var pf profileFile
		if err := json.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("failed to unmarshal network file %s: %w", path, err)
		}

		loaded[name] = Source{Profile: pf.toProfile(name), Path: path}
		logger.Debug("Loaded network from file", "network", name, "file", path)
	}

	if len(loaded) == 0 {
		logger.Info("No network files found in networks directory", "directory", dir)
	}
	return loaded, nil
}

func (pf profileFile) toProfile(name string) entity.NetworkProfile {
	profile := entity.NetworkProfile{
		Name:      name,
		Host:      pf.Host,
		Port:      pf.Port,
		NetworkID: pf.NetworkID,
		Protocol:  pf.Protocol,
		Gas:       pf.Gas,
		From:      pf.From,
		WebSocket: pf.WebSocket,
	}
	if pf.Signer != nil {
		profile.Signer = &entity.SignerRef{
			CredentialEnv:  pf.Signer.CredentialEnv,
			CredentialFile: pf.Signer.CredentialFile,
		}
	}
	return profile
}
