package models

type FileType string

const (
	FileTypePDF FileType = "PDF"
	FileTypePNG FileType = "IMAGE_PNG"
	FileTypeJPG FileType = "IMAGE_JPG"
)

// Piece is one captured file, bound to one document and one content type.
type Piece struct {
	Model
	FileName      string   `gorm:"size:255;not null" json:"fileName"`
	FilePath      string   `gorm:"size:1024;not null" json:"filePath"`
	PieceURL      string   `gorm:"size:1024" json:"pieceUrl"`
	FileSize      int64    `gorm:"not null" json:"fileSize"`
	FileType      FileType `gorm:"size:16;not null" json:"fileType"`
	QRCodeData    string   `gorm:"size:255;not null" json:"qrCodeData"`
	DocumentID    uint     `gorm:"not null;index" json:"documentId"`
	ContentTypeID uint     `gorm:"not null;index" json:"contentId"`
}
