package document

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyGenerator derives storage keys: {folder}/{token}_{epochMillis}.{ext}
type KeyGenerator struct {
	Token func() string    // mockable
	Now   func() time.Time // mockable
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{Token: randomToken, Now: time.Now}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Key builds the storage key of filename inside folder.
// Files without a usable extension get no ".ext" suffix.
func (g *KeyGenerator) Key(folder, filename string) string {
	name := g.Token() + "_" + strconv.FormatInt(g.Now().UnixNano()/int64(time.Millisecond), 10)
	if ext := extension(filename); ext != "" {
		name += "." + ext
	}
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// extension returns the lower-cased alphanumeric extension of filename, if any.
func extension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))), ".")
	if ext == "" || len(ext) > 16 {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}

// KeyTime returns the creation time encoded in a key built by Key.
func KeyTime(key string) (time.Time, bool) {
	name := path.Base(key)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(name[i+1:], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC(), true
}
