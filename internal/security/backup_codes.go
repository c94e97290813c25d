package security

import (
	"crypto/rand"
	"fmt"
)

const (
	BackupCodeCount  = 10
	backupCodeLength = 8
	backupCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateBackupCodes produces BackupCodeCount random single-use recovery
// codes. The alphabet omits easily-confused characters (0/O, 1/I).
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, backupCodeLength)
	for i, b := range buf {
		out[i] = backupCodeChars[int(b)%len(backupCodeChars)]
	}
	return string(out), nil
}
