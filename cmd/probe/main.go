// probe 是网关的连通性自检工具：以配置的模型和 API 密钥向网关发起一次
// 生成请求，流式打印 token，最后输出完整响应或错误信息。
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/ollamagate/ollamagate/client"
)

var (
	baseURL = flag.String("base-url", "http://localhost:8080", "网关地址")
	model   = flag.String("model", "gemma3:1b", "模型名称")
	apiKey  = flag.String("api-key", "test-api-key", "API 密钥")
	header  = flag.String("header", "X-API-Key", "API 密钥请求头名称")
	prompt  = flag.String("prompt", "What is the capital of France?", "测试提示词")
	timeout = flag.Duration("timeout", 2*time.Minute, "请求超时")
)

func main() {
	flag.Parse()

	llm := client.New(client.Options{
		BaseURL: *baseURL,
		Model:   *model,
		Headers: map[string]string{
			*header: *apiKey,
		},
		Timeout: *timeout,
		Handler: client.StdoutStreamHandler(),
	})

	response, err := llm.Generate(context.Background(), *prompt)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("\nResponse: %s\n", response)
}
