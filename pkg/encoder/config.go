/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package encoder

import (
	"fmt"
)

// Config is the configuration time description of one encoder instance.
// It does not change for the lifetime of the instance.
type Config struct {
	ResetValue int32
	// MinValue and MaxValue are optional, nil means unbounded
	MinValue *int32
	MaxValue *int32
	// HasIndex is false when no Z line is bound
	HasIndex bool
}

// Validate checks that MinValue <= ResetValue <= MaxValue for the bounds that are set.
func (c Config) Validate() error {
	if c.MinValue != nil && c.MaxValue != nil && *c.MinValue > *c.MaxValue {
		return ErrInvalidBounds{What: fmt.Sprintf("min_value %d > max_value %d", *c.MinValue, *c.MaxValue)}
	}
	if c.MinValue != nil && c.ResetValue < *c.MinValue {
		return ErrInvalidBounds{What: fmt.Sprintf("reset_value %d < min_value %d", c.ResetValue, *c.MinValue)}
	}
	if c.MaxValue != nil && c.ResetValue > *c.MaxValue {
		return ErrInvalidBounds{What: fmt.Sprintf("reset_value %d > max_value %d", c.ResetValue, *c.MaxValue)}
	}
	return nil
}

// Int32 returns a pointer to v. Handy for the optional bounds.
func Int32(v int32) *int32 {
	return &v
}
