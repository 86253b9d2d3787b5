package discord

// Activity SET_ACTIVITY 负载，空字段不发送
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Party      *Party      `json:"party,omitempty"`
}

// Timestamps 起始时间（Unix 秒），客户端据此显示已用时长
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets 图片资源
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

// Party 队伍人数 [当前, 上限]
type Party struct {
	Size [2]int `json:"size"`
}
