package types

// Types 全局注册切片，AutoMigrate 迁移其中所有模型
var Types = []interface{}{
	RequestRecord{},
}
