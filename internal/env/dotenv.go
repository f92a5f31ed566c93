package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/subosito/gotenv"
)

// DefaultDotenvFile is used when --dotenv is given without a file name
const DefaultDotenvFile = ".env"

// LoadDotenv reads and parses a dotenv file. A missing file is an input error.
func LoadDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.InputErrorf("missing-dotenv-target",
				"--dotenv flag is set but %s file is missing", path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return parsed, nil
}
