package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds a currency amount to 2 decimal places (minor units).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // best effort; relative assets won't resolve
		}
		currDir = newDir
	}
}
