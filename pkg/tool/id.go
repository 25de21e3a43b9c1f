package tool

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateReference builds a merchant-side reference id such as
// "PAY-20250102150405-1A2B3C4D". Unique per call, stable once assigned.
func GenerateReference(prefix string) string {
	u := uuid.Must(uuid.NewV7())
	short := strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))[24:]
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102150405"), short)
}
