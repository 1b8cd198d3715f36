package main

import (
	"fmt"
	"os"

	"kws/utils"
)

func main() {
	utils.InitLogger(utils.INFO)

	if len(os.Args) < 2 {
		fmt.Println("usage: kws <download|train> [options]")
		return
	}

	switch os.Args[1] {
	case "download":
		DownloadCommand(os.Args[2:])
	case "train":
		TrainCommand(os.Args[2:])
	default:
		fmt.Println("usage: kws <download|train> [options]")
	}
}
