package models

import (
	_ "github.com/ollama/dalle/model/models/clip"
	_ "github.com/ollama/dalle/model/models/dalle"
	_ "github.com/ollama/dalle/model/models/dvae"
)
