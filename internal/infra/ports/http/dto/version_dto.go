package dto

type CreateVersionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type RenameVersionRequest struct {
	Name string `json:"name"`
}
