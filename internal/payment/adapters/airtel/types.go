package airtel

import "encoding/json"

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
	TokenType   string      `json:"token_type"`
}

type responseStatus struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	ResultCode string `json:"result_code"`
	Success    bool   `json:"success"`
}

type subscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	MSISDN   string `json:"msisdn"`
}

type collectionTransaction struct {
	Amount   json.Number `json:"amount"`
	Country  string      `json:"country"`
	Currency string      `json:"currency"`
	ID       string      `json:"id"`
}

type collectionRequest struct {
	Reference   string                `json:"reference"`
	Subscriber  subscriber            `json:"subscriber"`
	Transaction collectionTransaction `json:"transaction"`
}

type transactionData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	AirtelMoneyID string `json:"airtel_money_id"`
}

type transactionResponse struct {
	Data struct {
		Transaction transactionData `json:"transaction"`
	} `json:"data"`
	Status responseStatus `json:"status"`
}

type apiError struct {
	Status           responseStatus `json:"status"`
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description"`
}

type callbackPayload struct {
	Transaction *struct {
		ID            string `json:"id"`
		Message       string `json:"message"`
		StatusCode    string `json:"status_code"`
		AirtelMoneyID string `json:"airtel_money_id"`
	} `json:"transaction"`
}
