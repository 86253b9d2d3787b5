package presence

// Command 发送给 Actor 的指令，按提交顺序逐条执行
type Command interface {
	command()
}

// Connect 建立连接，已连接时忽略
type Connect struct{}

// Disconnect 关闭连接，幂等
type Disconnect struct{}

// UpdateActivity 更新展示内容，未连接时忽略
// PartySize 与 PartyMax 同时存在时才附带队伍信息
type UpdateActivity struct {
	Details   string
	State     string
	PartySize *int
	PartyMax  *int
}

// ClearActivity 清除展示内容但保持连接
type ClearActivity struct{}

// Shutdown 清除展示、关闭连接并永久终止 Actor
type Shutdown struct{}

func (Connect) command()        {}
func (Disconnect) command()     {}
func (UpdateActivity) command() {}
func (ClearActivity) command()  {}
func (Shutdown) command()       {}

// Party 构造队伍信息
func Party(size, total int) (*int, *int) {
	return &size, &total
}
