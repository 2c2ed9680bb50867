package credentialloader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	envSuffix  = "_PRIVATE_KEY"
	fileSuffix = "_FILE"

	// keyHexLength is the length of a secp256k1 private key in hex digits.
	keyHexLength = 64
)

// Loader resolves signing credentials from the environment or from secret files.
type Loader struct {
	logger    port.Logger
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

// Option customizes a Loader.
type Option func(*Loader)

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *Loader) { l.lookupEnv = fn }
}

// WithReadFile replaces os.ReadFile.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(l *Loader) { l.readFile = fn }
}

// NewLoader creates a new Loader.
func NewLoader(logger port.Logger, opts ...Option) *Loader {
	l := &Loader{
		logger:    logger,
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CredentialEnvName returns the variable holding the key for a profile.
func CredentialEnvName(profile entity.NetworkProfile) string {
	if profile.Signer != nil && profile.Signer.CredentialEnv != "" {
		return profile.Signer.CredentialEnv
	}
	return configloader.EnvPrefix + configloader.EnvName(profile.Name) + envSuffix
}

// Load resolves the credential of a profile. The environment variable wins over the file.
// Profiles without a signer yield a nil credential.
func (l *Loader) Load(profile entity.NetworkProfile) (*entity.Credential, error) {
	if !profile.RequiresCredential() {
		return nil, nil
	}

	envName := CredentialEnvName(profile)
	if value, ok := l.lookupEnv(envName); ok && strings.TrimSpace(value) != "" {
		cred, err := ParsePrivateKey(value)
		if err != nil {
			return nil, withProfile(err, profile.Name, "from "+envName)
		}
		l.logger.Debug("Credential loaded from environment", "network", profile.Name, "variable", envName, "address", cred.Address().Hex())
		return cred, nil
	}

	path := profile.Signer.CredentialFile
	if path == "" {
		path, _ = l.lookupEnv(envName + fileSuffix)
	}
	if path == "" {
		return nil, &entity.InvalidCredentialError{
			Profile: profile.Name,
			Reason:  fmt.Sprintf("no credential supplied, set %s or %s", envName, envName+fileSuffix),
		}
	}

	cred, err := l.loadFile(path)
	if err != nil {
		return nil, withProfile(err, profile.Name, "from file "+path)
	}
	l.logger.Debug("Credential loaded from file", "network", profile.Name, "path", path, "address", cred.Address().Hex())
	return cred, nil
}

// loadFile uses the first line that is neither blank nor a comment.
func (l *Loader) loadFile(path string) (*entity.Credential, error) {
	data, err := l.readFile(path)
	if err != nil {
		return nil, &entity.InvalidCredentialError{Reason: "failed to read credential file", Err: err}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return ParsePrivateKey(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &entity.InvalidCredentialError{Reason: "failed to scan credential file", Err: err}
	}
	return nil, &entity.InvalidCredentialError{Reason: "credential file is empty"}
}

// ParsePrivateKey parses a hex-encoded secp256k1 key, with or without 0x prefix.
// Errors never include the input.
func ParsePrivateKey(value string) (*entity.Credential, error) {
	hexKey := strings.TrimSpace(value)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if len(hexKey) != keyHexLength {
		return nil, &entity.InvalidCredentialError{
			Reason: fmt.Sprintf("expected %d hex digits, got %d characters", keyHexLength, len(hexKey)),
		}
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// The underlying error may quote the input, so it is not wrapped.
		return nil, &entity.InvalidCredentialError{Reason: "not a valid secp256k1 private key"}
	}
	return entity.NewCredential(key), nil
}

// VerifySender checks that the credential derives the profile's declared sender.
func VerifySender(profile entity.NetworkProfile, cred *entity.Credential) error {
	if cred == nil || profile.From == "" {
		return nil
	}
	if !common.IsHexAddress(profile.From) {
		return &entity.InvalidFieldError{Profile: profile.Name, Field: "from", Value: profile.From, Reason: "not a hex address"}
	}
	if common.HexToAddress(profile.From) != cred.Address() {
		return &entity.InvalidCredentialError{
			Profile: profile.Name,
			Reason:  fmt.Sprintf("key derives %s but the network declares from %s", cred.Address().Hex(), common.HexToAddress(profile.From).Hex()),
		}
	}
	return nil
}

func withProfile(err error, profile, source string) error {
	var credErr *entity.InvalidCredentialError
	if errors.As(err, &credErr) {
		return &entity.InvalidCredentialError{
			Profile: profile,
			Reason:  credErr.Reason + " (" + source + ")",
			Err:     credErr.Err,
		}
	}
	return err
}
