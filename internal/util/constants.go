package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 草图上传相关常量
const (
	MimeImage = "image/"
)

var (
	AllowedSketchExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".svg"}
)
