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

package bcode

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

const (
	// Common HTTP status codes
	HTTPStatusOK                  = 200
	HTTPStatusBadRequest          = 400
	HTTPStatusNotFound            = 404
	HTTPStatusConflict            = 409
	HTTPStatusInternalServerError = 500
)

// Error Code of iVIT contains 5 digits, the first 3 digits indicates the category of concept
// the last two digits indicates the error number
// For example, business code 40002 splits to 400 and 02, the second error of the source category.

// Category groups business codes by failure kind.
type Category int32

const (
	CategoryGeneric    Category = 0
	CategoryConfig     Category = 100
	CategoryNotFound   Category = 200
	CategoryConflict   Category = 300
	CategorySource     Category = 400
	CategoryEngine     Category = 500
	CategoryConversion Category = 600
)

func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "ConfigError"
	case CategoryNotFound:
		return "ResourceNotFoundError"
	case CategoryConflict:
		return "ConcurrencyConflict"
	case CategorySource:
		return "SourceError"
	case CategoryEngine:
		return "EngineInitError"
	case CategoryConversion:
		return "ConversionError"
	default:
		return "Error"
	}
}

// SuccessCode a success code
var SuccessCode = NewBcode(HTTPStatusOK, HTTPStatusOK, "success")

// ErrServer an unexpected mistake.
var ErrServer = NewBcode(HTTPStatusInternalServerError, HTTPStatusInternalServerError, "The service has lapsed.")

// ErrBadRequest the request body can not be parsed
var ErrBadRequest = NewBcode(HTTPStatusBadRequest, HTTPStatusBadRequest, "Bad Request")

// ErrNotFound the request resource is not found
var ErrNotFound = NewBcode(HTTPStatusNotFound, HTTPStatusNotFound, "404 Not Found")

// Bcode business error code
type Bcode struct {
	HTTPCode     int32  `json:"-"`
	BusinessCode int32  `json:"business_code"`
	Message      string `json:"message"`
}

func (b *Bcode) Error() string {
	switch {
	case b.Message != "":
		return b.Message
	default:
		return "something went wrong, please see the ivit server logs for details"
	}
}

// Is reports whether target carries the same business code, so copies made by
// SetMessage still match their registered code.
func (b *Bcode) Is(target error) bool {
	t, ok := target.(*Bcode)
	if !ok {
		return false
	}
	return b.BusinessCode == t.BusinessCode
}

// Category returns the category of the business code.
func (b *Bcode) Category() Category {
	if b.BusinessCode < 10000 {
		return CategoryGeneric
	}
	return Category(b.BusinessCode / 100)
}

// SetMessage set new message and return a new error instance
func (b *Bcode) SetMessage(message string) *Bcode {
	return &Bcode{
		HTTPCode:     b.HTTPCode,
		BusinessCode: b.BusinessCode,
		Message:      message,
	}
}

// Messagef is SetMessage with formatting.
func (b *Bcode) Messagef(format string, args ...interface{}) *Bcode {
	return b.SetMessage(fmt.Sprintf(format, args...))
}

var bcodeMap map[int32]*Bcode

// NewBcode new error code
func NewBcode(httpCode, businessCode int32, message string) *Bcode {
	if bcodeMap == nil {
		bcodeMap = make(map[int32]*Bcode)
	}
	if _, exit := bcodeMap[businessCode]; exit {
		panic("error business code is exist")
	}
	bcode := &Bcode{HTTPCode: httpCode, BusinessCode: businessCode, Message: message}
	bcodeMap[businessCode] = bcode
	return bcode
}

// CategoryOf classifies err. Errors without a Bcode are CategoryGeneric.
func CategoryOf(err error) Category {
	var b *Bcode
	if errors.As(err, &b) {
		return b.Category()
	}
	return CategoryGeneric
}

// IsCategory reports whether err belongs to category c.
func IsCategory(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// ReturnHTTPError Unified handling of all types of errors, generating a standard return structure.
func ReturnHTTPError(c *gin.Context, err error) {
	c.SetAccepted(gin.MIMEJSON)
	ReturnError(c, err)
}

// ReturnError Unified handling of all types of errors, generating a standard return structure.
func ReturnError(c *gin.Context, err error) {
	var bcode *Bcode
	if errors.As(err, &bcode) {
		c.JSON(int(bcode.HTTPCode), bcode.SetMessage(err.Error()))
		return
	}

	if errors.Is(err, datastore.ErrRecordNotExist) {
		c.JSON(http.StatusNotFound, ErrNotFound.SetMessage(err.Error()))
		return
	}

	var validErr validator.ValidationErrors
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, Bcode{
			HTTPCode:     http.StatusBadRequest,
			BusinessCode: HTTPStatusBadRequest,
			Message:      err.Error(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, Bcode{
		HTTPCode:     http.StatusInternalServerError,
		BusinessCode: HTTPStatusInternalServerError,
		Message:      err.Error(),
	})
}

// WrapError wraps a Bcode error with the original error's message
// It also prevents error nesting if the original error is already a Bcode
func WrapError(bcodeErr *Bcode, originalErr error) error {
	if originalErr == nil {
		return bcodeErr
	}

	var existingBcode *Bcode
	if errors.As(originalErr, &existingBcode) {
		return originalErr
	}

	return fmt.Errorf("%w: %v", bcodeErr, originalErr)
}

// LogAndReturnError logs the detailed error and returns it
func LogAndReturnError(bcodeErr *Bcode, originalErr error, logFields ...interface{}) error {
	if originalErr != nil {
		logger.LogicLogger.Error(bcodeErr.Message, append([]interface{}{"error", originalErr}, logFields...)...)
	} else {
		logger.LogicLogger.Error(bcodeErr.Message, logFields...)
	}
	return WrapError(bcodeErr, originalErr)
}
