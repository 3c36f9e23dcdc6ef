//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package common

import (
	"fmt"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// ValidateRequiredFlag validates that a required flag is provided
func ValidateRequiredFlag(flagName, flagValue string) error {
	if flagValue == "" {
		return fmt.Errorf("%s is required", flagName)
	}
	return nil
}

// ValidateSource checks that a locator names a supported source kind.
func ValidateSource(locator string) error {
	if _, err := types.DetectSourceKind(locator); err != nil {
		return fmt.Errorf("invalid --source: %v", err)
	}
	return nil
}

func ValidateThreshold(thres float64) error {
	if thres < 0 || thres > 1 {
		return fmt.Errorf("invalid --thres %v, expected a value in [0, 1]", thres)
	}
	return nil
}
