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

package config

import (
	"fmt"
)

// ErrConfigFileExists returned when trying to overwrite an existing config file
type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("Config file %s already exists", e.Path)
}

// ErrMissingPin returned when an encoder has no A or B line
type ErrMissingPin struct {
	Encoder string
	Pin     string
}

func (e ErrMissingPin) Error() string {
	return fmt.Sprintf("Encoder %s: pin %s is required", e.Encoder, e.Pin)
}

// ErrDuplicateIndex returned when two encoders claim the same ordinal
type ErrDuplicateIndex struct {
	Index int
}

func (e ErrDuplicateIndex) Error() string {
	return fmt.Sprintf("Duplicate encoder index %d", e.Index)
}

// ErrIndexOutOfRange returned when an encoder ordinal is outside [0, N)
type ErrIndexOutOfRange struct {
	Index int
	N     int
}

func (e ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("Encoder index %d out of range. Must be in [0, %d)", e.Index, e.N)
}

// ErrDuplicateName returned when two encoders or two cards share a name
type ErrDuplicateName struct {
	Name string
}

func (e ErrDuplicateName) Error() string {
	return fmt.Sprintf("Duplicate name %s", e.Name)
}

// ErrCardNotFound returned when a card is not in the control section
type ErrCardNotFound struct {
	What string
}

func (e ErrCardNotFound) Error() string {
	return fmt.Sprintf("Card not found: %s", e.What)
}

// ErrBadValue returned when a config value can not be parsed
type ErrBadValue struct {
	Field string
	Value string
}

func (e ErrBadValue) Error() string {
	return fmt.Sprintf("Wrong value %q for %s", e.Value, e.Field)
}
