package credstore

import (
	"context"

	"github.com/nonfou/mpayctl/internal/tokenfile"
)

// FilePersister stores the credential as a JSON token file.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the token file location.
func (p *FilePersister) Path() string {
	return p.path
}

// Load implements Persister.
func (p *FilePersister) Load(_ context.Context) (Credential, error) {
	tok, err := tokenfile.Load(p.path)
	if err != nil {
		return Credential{}, err
	}

	return FromToken(tok), nil
}

// Save implements Persister. A zero credential removes the file.
func (p *FilePersister) Save(_ context.Context, c Credential) error {
	if c.IsZero() {
		return tokenfile.Remove(p.path)
	}

	return tokenfile.Save(p.path, c.Token())
}

// Clear implements Persister.
func (p *FilePersister) Clear(_ context.Context) error {
	return tokenfile.Remove(p.path)
}
