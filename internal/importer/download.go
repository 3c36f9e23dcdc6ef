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

package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// progressWriter reports the transferred fraction in whole percent steps.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(fraction float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		if pct := int(w.written * 100 / w.total); pct > w.last {
			w.last = pct
			w.report(float64(w.written) / float64(w.total))
		}
	}
	return len(p), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// fetch copies the bundle of j into dst. Remote bundles are downloaded with
// resty, local ones are copied.
func (m *Manager) fetch(ctx context.Context, j *job, dst string) error {
	report := func(f float64) { j.advance(StageDownloading, f, "", m.notify) }

	var (
		body  io.ReadCloser
		total int64
	)
	if j.req.URL != "" {
		resp, err := m.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(j.req.URL)
		if err != nil {
			return bcode.WrapError(bcode.ErrDownload, err)
		}
		body = resp.RawBody()
		if resp.IsError() {
			_ = body.Close()
			return bcode.ErrDownload.Messagef("Failed to download model bundle: %s", resp.Status())
		}
		if resp.RawResponse != nil {
			total = resp.RawResponse.ContentLength
		}
	} else {
		f, err := os.Open(j.req.File)
		if err != nil {
			return bcode.WrapError(bcode.ErrDownload, err)
		}
		if info, err := f.Stat(); err == nil {
			total = info.Size()
		}
		body = f
	}
	defer body.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	pw := &progressWriter{total: total, report: report}
	if _, err := io.Copy(io.MultiWriter(out, pw), &ctxReader{ctx: ctx, r: body}); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return bcode.WrapError(bcode.ErrDownload, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	report(1)
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verify compares the bundle digest with the declared one. A bundle without a
// declared digest is accepted.
func verify(path, declared string) error {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "" {
		return nil
	}
	sum, err := fileSHA256(path)
	if err != nil {
		return err
	}
	if sum != declared {
		_ = os.Remove(path)
		return bcode.ErrChecksumMismatch.Messagef("Checksum mismatch, expected %s but got %s", declared, sum)
	}
	return nil
}
