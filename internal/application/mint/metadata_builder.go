// internal/application/mint/metadata_builder.go
package mint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const (
	DefaultSymbol           = "CHAMP"
	defaultImageContentType = "image/png"
	metadataContentType     = "application/json"
)

// MetadataBuilder は WinnerRecord から NFT メタデータ JSON を組み立てる。
// 同じ入力からは常に同じバイト列を返す（upload の重複排除が効く）。
type MetadataBuilder struct {
	uploader Uploader
	symbol   string
}

func NewMetadataBuilder(uploader Uploader, symbol string) *MetadataBuilder {
	s := strings.TrimSpace(symbol)
	if s == "" {
		s = DefaultSymbol
	}
	return &MetadataBuilder{uploader: uploader, symbol: s}
}

func (b *MetadataBuilder) Symbol() string { return b.symbol }

// Document returns the metadata document for rec.
func (b *MetadataBuilder) Document(rec windom.WinnerRecord, imageURI, imageContentType string) (mintdom.MetadataDocument, error) {
	imageURI = strings.TrimSpace(imageURI)
	if imageURI == "" {
		return mintdom.MetadataDocument{}, errors.New("metadata: image uri is empty")
	}
	ct := strings.TrimSpace(imageContentType)
	if ct == "" {
		ct = defaultImageContentType
	}

	attrs := make([]windom.Attribute, 0, len(rec.Attributes))
	attrs = append(attrs, rec.Attributes...)

	return mintdom.MetadataDocument{
		Name:                 rec.DisplayName,
		Symbol:               b.symbol,
		Description:          rec.Description,
		SellerFeeBasisPoints: 0,
		Image:                imageURI,
		Attributes:           attrs,
		Properties: mintdom.MetadataProperties{
			Category: "image",
			Files:    []mintdom.MetadataFile{{URI: imageURI, Type: ct}},
		},
	}, nil
}

// Build serializes the metadata document.
func (b *MetadataBuilder) Build(rec windom.WinnerRecord, imageURI, imageContentType string) ([]byte, error) {
	doc, err := b.Document(rec, imageURI, imageContentType)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("metadata: marshal: %w", err)
	}
	return out, nil
}

// BuildAndUpload builds the document and stores it through the uploader.
func (b *MetadataBuilder) BuildAndUpload(ctx context.Context, rec windom.WinnerRecord, imageURI, imageContentType string) (mintdom.UploadResult, error) {
	if b.uploader == nil {
		return mintdom.UploadResult{}, errors.New("metadata: uploader is nil")
	}
	body, err := b.Build(rec, imageURI, imageContentType)
	if err != nil {
		return mintdom.UploadResult{}, err
	}
	return b.uploader.Upload(ctx, body, metadataContentType)
}
