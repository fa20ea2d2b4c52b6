package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("切换目录失败: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	// 配置文件缺失时应生成模板并返回错误
	if _, err := ReadConfig(); err == nil {
		t.Fatal("配置文件缺失未返回错误")
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Fatalf("模板配置文件未生成: %v", err)
	}

	data, _ := json.Marshal(Config{
		Broker: BrokerConfig{
			Host:      "broker.example.com",
			Port:      8883,
			KeepAlive: 30,
		},
		AppName: "mqtt-client-test",
	})
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	config, err := ReadConfig()
	if err != nil {
		t.Fatalf("读取配置文件失败: %v", err)
	}
	if config.Broker.Host != "broker.example.com" || config.Broker.Port != 8883 {
		t.Errorf("配置解析错误: %+v", config.Broker)
	}
	if config.DatabaseEnabled() {
		t.Error("未配置数据库主机时应禁用持久化")
	}
}
