package service

import "github.com/tasktrack/backend/internal/domain"

// NoteSealer encrypts and decrypts task notes. *crypto.Encryptor
// satisfies it.
type NoteSealer interface {
	SealString(plain string) (string, error)
	OpenString(sealed string) (string, error)
}

// noteCipher is a no-op when no sealer is configured.
type noteCipher struct {
	sealer NoteSealer
}

func (c noteCipher) seal(notes *string) (*string, error) {
	if c.sealer == nil || notes == nil {
		return notes, nil
	}
	sealed, err := c.sealer.SealString(*notes)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (c noteCipher) open(tasks ...*domain.Task) error {
	if c.sealer == nil {
		return nil
	}
	for _, t := range tasks {
		if t == nil || t.Notes == nil {
			continue
		}
		plain, err := c.sealer.OpenString(*t.Notes)
		if err != nil {
			return domain.ErrInternal("failed to decrypt notes", err)
		}
		t.Notes = &plain
	}
	return nil
}
