package services

import (
	"bufio"
	"crypto/rand"
	"math/big"
	"os"
	"strings"
	"sync"
)

// AliasService generates short, memorable display names for tunnel
// users (SPEC_FULL.md §3's "display alias (derived, for logs/status
// only)"), adapted from the teacher's subdomain generator: same
// word-list/rand.Int mechanics, repurposed to label a TunnelUser
// instead of naming a public subdomain.
type AliasService struct {
	words []string
	mu    sync.RWMutex
}

func NewAliasService(wordlistPath string) (*AliasService, error) {
	s := &AliasService{}
	if err := s.loadWords(wordlistPath); err != nil {
		s.words = defaultAliasWords
	}
	return s, nil
}

func (s *AliasService) loadWords(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if len(word) >= 3 && len(word) <= 10 && isAlphaWord(word) {
			s.words = append(s.words, word)
		}
	}
	return scanner.Err()
}

func isAlphaWord(s string) bool {
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// Generate returns a random two-word alias, e.g. "swift-falcon". Each
// word is picked independently; uniqueness across calls is not checked.
func (s *AliasService) Generate() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]string, 2)
	for i := range parts {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.words))))
		if err != nil {
			return "", err
		}
		parts[i] = s.words[idx.Int64()]
	}
	return strings.Join(parts, "-"), nil
}

var defaultAliasWords = []string{
	"wolf", "bear", "fox", "hawk", "eagle", "tiger", "lion", "shark", "dragon", "phoenix",
	"raven", "falcon", "panther", "cobra", "viper", "lynx", "horse", "deer", "owl", "crow",
	"fire", "ice", "storm", "thunder", "shadow", "light", "dark", "frost", "flame", "wind",
	"stone", "iron", "steel", "gold", "silver", "crystal", "ember", "ash", "cloud", "star",
	"swift", "brave", "bold", "silent", "wild", "fierce", "rapid", "steady", "mystic", "cosmic",
	"blade", "arrow", "shield", "spear", "crown", "helm", "forge", "tower", "gate", "bridge",
	"red", "blue", "green", "black", "white", "gray", "purple", "orange", "crimson", "azure",
	"cyber", "neon", "pixel", "byte", "data", "core", "nexus", "vertex", "matrix", "grid",
}
