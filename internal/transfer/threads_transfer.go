package transfer

type ThreadsContainerResponse struct {
	ID string `json:"id"`
}

type ThreadsContainerStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"` // IN_PROGRESS, FINISHED, PUBLISHED, ERROR, EXPIRED
	ErrorMessage string `json:"error_message"`
}

type ThreadsErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

type ThreadsInsightsResponse struct {
	Data []ThreadsInsightMetric `json:"data"`
}

type ThreadsInsightMetric struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value int64 `json:"value"`
	} `json:"values"`
	TotalValue *struct {
		Value int64 `json:"value"`
	} `json:"total_value"`
}

type ThreadsTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
