package model

// Product はマーケティング対象のプロダクトを表す。
// 実体は外部Webhookサービスが所有し、ここでは往復させるペイロードの
// 型付けのみを行う。IDは外部サービスが採番する。
type Product struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Detail         string   `json:"detail"`
	Domain         string   `json:"domain"`
	TargetKeywords []string `json:"targetKeywords,omitempty"`
	Price          float64  `json:"price"`
}

// プロダクト入力のバリデーション上限。
const (
	ProductDescriptionMaxLen = 500
	ProductDetailMaxLen      = 1000
	ProductPriceMax          = 1_000_000
)
