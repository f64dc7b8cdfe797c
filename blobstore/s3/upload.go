package s3

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// UploadConfig tunes checkpoint uploads. Zero PartSize or Concurrency keep
// the SDK defaults.
type UploadConfig struct {
	PartSize    int64 // bytes per multipart part
	Concurrency int   // parts in flight per upload
	Checksum    bool  // send CRC-32C with every object

	// KeepPartsOnError leaves the parts of a failed multipart upload in
	// the bucket for a lifecycle rule to collect.
	KeepPartsOnError bool
}

// DefaultUploadConfig uses 8 MiB parts, five at a time, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 << 20,
		Concurrency: 5,
		Checksum:    true,
	}
}

func (cfg UploadConfig) uploader(client Client) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.KeepPartsOnError
	})
}

// uploadWriter feeds a background manager upload through a pipe. The object
// exists once Close returns nil; Abort or a failed Close leaves no object.
type uploadWriter struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	result chan error

	mu       sync.Mutex
	finished bool
	err      error
}

// startUpload begins uploading to bucket/key. The upload ignores ctx
// cancellation; only Abort stops it.
func startUpload(ctx context.Context, u *manager.Uploader, bucket, key string, checksum bool) *uploadWriter {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if checksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	w := &uploadWriter{pw: pw, cancel: cancel, result: make(chan error, 1)}
	go func() {
		_, err := u.Upload(ctx, input)
		// A failed upload stops reading; unblock the writer.
		_ = pr.CloseWithError(err)
		w.result <- err
	}()
	return w
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	finished := w.finished
	w.mu.Unlock()
	if finished {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

// Sync is a no-op; nothing is durable before Close.
func (w *uploadWriter) Sync() error { return nil }

func (w *uploadWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return w.err
	}
	w.finished = true
	defer w.cancel()

	if err := w.pw.Close(); err != nil {
		w.err = err
		return err
	}
	w.err = <-w.result
	return w.err
}

// Abort cancels the upload and waits for the uploader to clean up.
func (w *uploadWriter) Abort(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return nil
	}
	w.finished = true
	w.err = context.Canceled

	w.cancel()
	_ = w.pw.CloseWithError(context.Canceled)
	<-w.result
	return nil
}
