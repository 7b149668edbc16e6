package venues

import "encoding/json"

// marketsResponse es la respuesta del endpoint /markets.
type marketsResponse struct {
	Markets []wireMarket `json:"markets"`
}

// wireMarket es el DTO crudo de un mercado tal y como lo sirve la venue.
// Los numéricos llegan como string o number según la venue, de ahí json.Number.
type wireMarket struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	YesPrice  json.Number `json:"yes_price"`
	NoPrice   json.Number `json:"no_price"`
	Volume    json.Number `json:"volume"`
	Liquidity json.Number `json:"liquidity"`
	CloseTime string      `json:"close_time"`
	Status    string      `json:"status"`
	Outcome   *bool       `json:"outcome,omitempty"`
}
