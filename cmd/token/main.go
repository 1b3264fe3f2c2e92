// Command token 为调用方签发服务 Token。
//
//	token -sub registrar -role planner -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/pkg/jwt"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	subject := flag.String("sub", "", "调用方标识（必填）")
	role := flag.String("role", jwt.RoleViewer, "角色: planner | viewer")
	ttl := flag.Duration("ttl", 0, "有效期，0 表示使用 auth.token_ttl")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -sub")
		flag.Usage()
		os.Exit(2)
	}
	if *role != jwt.RolePlanner && *role != jwt.RoleViewer {
		fmt.Fprintf(os.Stderr, "未知角色 %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	token, claims, err := jwt.NewManager(&cfg.Auth).GenerateToken(*subject, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发 Token 失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "jti=%s subject=%s role=%s expires=%s\n",
		claims.ID, claims.Subject, claims.Role, claims.ExpiresAt.Time.Format(time.RFC3339))
	fmt.Println(token)
}
