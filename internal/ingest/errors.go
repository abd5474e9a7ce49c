package ingest

import "fmt"

// UnsupportedFileTypeError indicates the uploaded file is neither an image
// nor a PDF (or could not be decoded as the image it claims to be).
// Surfaced immediately; no extraction call is made.
type UnsupportedFileTypeError struct {
	ContentType string
	Err         error
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q, please select an image or a PDF", e.ContentType)
}

func (e *UnsupportedFileTypeError) Unwrap() error {
	return e.Err
}

// AllPagesFailedError indicates rasterization succeeded but extraction
// failed on every page. Distinct from RasterizationError so the message can
// point at extraction rather than the file.
type AllPagesFailedError struct {
	Pages int
}

func (e *AllPagesFailedError) Error() string {
	return fmt.Sprintf("could not extract any expenses from the PDF: analysis failed on all %d pages, the file itself rendered fine", e.Pages)
}
