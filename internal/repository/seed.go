package repository

import (
	"database/sql"
	"log"
)

type seedCharacter struct {
	name     string
	imageURL string
	isBoss   bool
}

type seedDifficulty struct {
	name       string
	multiplier float64
}

// Bosses pair up with difficulty tiers by position.
var bossSeeds = []seedCharacter{
	{"Froggorz", "assets/monster1r.png", true},
	{"Wolvid", "assets/monster2r.png", true},
	{"Mushribs", "assets/monster3r.png", true},
}

var difficultySeeds = []seedDifficulty{
	{"Easy", 0.5},
	{"Normal", 1},
	{"Hardcore", 2},
}

var avatarSeeds = []seedCharacter{
	{"The Sprinter", "assets/char1.png", false},
	{"The Flow Seeker", "assets/char2.png", false},
	{"The Challenger", "assets/char4.png", false},
	{"The Visionary", "assets/char5.png", false},
}

// SeedCharactersAndDifficulties inserts the reference data once. Characters
// and difficulties are read-only afterwards; handlers never mutate them.
func SeedCharactersAndDifficulties(db *sql.DB) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM characters").Scan(&count); err != nil {
		log.Fatalf("Error checking characters: %v", err)
	}
	if count > 0 {
		return
	}

	for i, boss := range bossSeeds {
		var characterID int
		err := db.QueryRow(
			"INSERT INTO characters (name, image_url, is_boss) VALUES ($1, $2, $3) RETURNING id",
			boss.name, boss.imageURL, boss.isBoss,
		).Scan(&characterID)
		if err != nil {
			log.Fatalf("Error seeding boss character: %v", err)
		}

		_, err = db.Exec(
			"INSERT INTO difficulties (name, character_id, multiplier) VALUES ($1, $2, $3)",
			difficultySeeds[i].name, characterID, difficultySeeds[i].multiplier,
		)
		if err != nil {
			log.Fatalf("Error seeding difficulty: %v", err)
		}
	}

	for _, avatar := range avatarSeeds {
		_, err := db.Exec(
			"INSERT INTO characters (name, image_url, is_boss) VALUES ($1, $2, $3)",
			avatar.name, avatar.imageURL, avatar.isBoss,
		)
		if err != nil {
			log.Fatalf("Error seeding avatar character: %v", err)
		}
	}
}
