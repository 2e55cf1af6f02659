package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirConfigs = "configs"
	dirStorage = "storage"
	dirDB      = "storage/db"
	dirTmp     = "storage/tmp"
	dirPublic  = "public"
	dirUploads = "public/uploads"
	dirLogs    = "logs"
)

var (
	configFilePath = filepath.Join(dirConfigs, "config.json")

	dbFilePath = filepath.Join(dirDB, "wmg.db")

	logFilePath = filepath.Join(dirLogs, "bot.log")
	errLogPath  = filepath.Join(dirLogs, "errors.log")
)

func initAppLayout() {
	dirs := []string{dirConfigs, dirStorage, dirDB, dirTmp, dirPublic, dirUploads, dirLogs}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("⚠️ Не удалось создать каталог %s: %v\n", dir, err)
		}
	}

	// Ранние версии держали всё в корне рабочего каталога.
	migrateLegacyFile("config.json", configFilePath)
	migrateLegacyFile("wmg.db", dbFilePath)
	migrateLegacyFile("bot.log", logFilePath)
	migrateLegacyFile("errors.log", errLogPath)
}

func migrateLegacyFile(oldPath, newPath string) {
	info, err := os.Stat(oldPath)
	if err != nil || info.IsDir() {
		return
	}
	if _, err := os.Stat(newPath); err == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		fmt.Printf("⚠️ Не удалось создать каталог для %s: %v\n", newPath, err)
		return
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		fmt.Printf("⚠️ Не удалось переместить %s -> %s: %v\n", oldPath, newPath, err)
	}
}
