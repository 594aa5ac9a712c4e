// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key derives a deterministic cache key from a request url and its
// serialized configuration.
func Key(url string, config any) (string, error) {
	b, err := json.Marshal(config)
	if err != nil {
		return "", err
	}

	d := xxhash.New()
	_, _ = d.WriteString(url)
	_, _ = d.Write(b)
	return fmt.Sprintf("%016x", d.Sum64()), nil
}
