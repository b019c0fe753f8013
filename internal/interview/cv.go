package interview

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/ledongthuc/pdf"
)

const extText = ".txt"

// ExtractCVText returns the plain text of an uploaded CV. PDF documents are parsed page by
// page; .txt uploads are used as-is. A CV without extractable text fails with
// core.ErrInputMissing, an unreadable document with core.ErrConversionFailure.
func ExtractCVText(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: CV file is empty", core.ErrInputMissing)
	}

	var text string

	if strings.EqualFold(filepath.Ext(filename), extText) {
		text = string(data)
	} else {
		extracted, err := extractPDF(data)
		if err != nil {
			return "", err
		}

		text = extracted
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: could not extract text from CV", core.ErrInputMissing)
	}

	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: malformed PDF: %v", core.ErrConversionFailure, recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %w", core.ErrConversionFailure, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: failed to extract PDF text: %w", core.ErrConversionFailure, err)
	}

	var buf bytes.Buffer

	_, readErr := buf.ReadFrom(plain)
	if readErr != nil {
		return "", fmt.Errorf("%w: failed to read PDF text: %w", core.ErrConversionFailure, readErr)
	}

	return buf.String(), nil
}
