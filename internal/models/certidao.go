package models

// CndtRequest represents a CNDT issuance request
type CndtRequest struct {
	CNPJ   string `json:"cnpj" binding:"required" example:"00000000000191"`
	FileID string `json:"file_id" binding:"required" example:"certidao_123"`
}

// CndtResponse carries the text extracted from the issued CNDT
type CndtResponse struct {
	TextoPDF string `json:"texto_pdf" example:"CERTIDÃO NEGATIVA DE DÉBITOS TRABALHISTAS..."`
}

// CndResponse carries the CND detail lines returned by Dataprev
type CndResponse struct {
	CNPJ             string `json:"cnpj" example:"00000000000191"`
	ConteudoCertidao string `json:"conteudo_certidao" example:"CERTIDAO NEGATIVA DE DEBITO..."`
	Cache            bool   `json:"cache" example:"false"`
}
