package config

import (
	"fmt"

	"retroparquet/internal/schema"
	"retroparquet/internal/writer"
)

// Default returns the built-in Retrosheet configuration: the five simple-file
// entities with their column declarations and encoding policies. Callers may
// serialize it as a starting point for a custom config.
func Default() Config {
	return Config{
		Job:       "retroparquet",
		InputDir:  "retrosheet",
		OutputDir: "retrosheet_simple",
		Entities: []Entity{
			{
				Name: "gamelog",
				Glob: "gamelog/*.TXT",
				// Game logs legitimately repeat rows across source files, so
				// dedup stays off. Only rows without event/boxscore data are
				// kept ("N" acquisition marker).
				Rules: Rules{
					CompleteMarker: "N",
					SourceEncoding: "windows-1252",
				},
				Columns: gamelogColumns(),
				Encoding: writer.Policy{
					NoDictionary: []string{"visitor_line_score", "home_line_score", "additional_info"},
				},
			},
			{
				Name:    "schedule",
				Glob:    "schedule/*.TXT",
				Rules:   Rules{Dedupe: true, SourceEncoding: "windows-1252"},
				Columns: scheduleColumns(),
			},
			{
				Name:    "park",
				Glob:    "misc/parkcode.txt",
				Rules:   Rules{Dedupe: true, StripHeader: true, SourceEncoding: "windows-1252"},
				Columns: parkColumns(),
				Encoding: writer.Policy{
					NoDictionary: []string{"notes"},
				},
			},
			{
				Name:    "roster",
				Glob:    "rosters/*.ROS",
				Rules:   Rules{Dedupe: true, PrependTag: true, SourceEncoding: "windows-1252"},
				Columns: rosterColumns(),
				// Files concatenate in year order, so the prepended year is
				// a compact near-monotonic ordinal.
				Encoding: writer.Policy{DeltaKey: "year"},
			},
			{
				Name:    "bio",
				Glob:    "misc/biofile.csv",
				Rules:   Rules{Dedupe: true, StripHeader: true, SourceEncoding: "windows-1252"},
				Columns: bioColumns(),
			},
		},
	}
}

// col declares a nullable column; every data column in these files can be
// empty in some era of the historical record.
func col(name string, t schema.RelType) schema.Column {
	return schema.Column{Name: name, Type: t, Nullable: true}
}

func scheduleColumns() []schema.Column {
	return []schema.Column{
		{Name: "schedule_id", Type: schema.RelInteger, AutoKey: true},
		col("date", schema.RelDate),
		col("double_header", schema.RelSmallInt),
		col("day_of_week", schema.RelChar),
		col("visiting_team", schema.RelChar),
		col("visiting_league", schema.RelChar),
		col("visiting_game_number", schema.RelSmallInt),
		col("home_team", schema.RelChar),
		col("home_league", schema.RelChar),
		col("home_game_number", schema.RelSmallInt),
		col("day_night", schema.RelChar),
		col("postponement_indicator", schema.RelVarchar),
		col("makeup_date", schema.RelVarchar),
	}
}

func parkColumns() []schema.Column {
	return []schema.Column{
		col("park_id", schema.RelChar),
		col("name", schema.RelVarchar),
		col("aka", schema.RelVarchar),
		col("city", schema.RelVarchar),
		col("state", schema.RelVarchar),
		col("start_date", schema.RelDate),
		col("end_date", schema.RelDate),
		col("league", schema.RelChar),
		col("notes", schema.RelText),
	}
}

func rosterColumns() []schema.Column {
	return []schema.Column{
		col("year", schema.RelInteger), // prepended file tag
		col("player_id", schema.RelChar),
		col("last_name", schema.RelVarchar),
		col("first_name", schema.RelVarchar),
		col("bats", schema.RelChar),
		col("throws", schema.RelChar),
		col("team_id", schema.RelChar),
		col("position", schema.RelVarchar),
	}
}

func bioColumns() []schema.Column {
	return []schema.Column{
		col("player_id", schema.RelChar),
		col("last_name", schema.RelVarchar),
		col("first_name", schema.RelVarchar),
		col("nickname", schema.RelVarchar),
		col("birthdate", schema.RelDate),
		col("birth_city", schema.RelVarchar),
		col("birth_state", schema.RelVarchar),
		col("birth_country", schema.RelVarchar),
		col("play_debut", schema.RelDate),
		col("play_last_game", schema.RelDate),
		col("mgr_debut", schema.RelDate),
		col("mgr_last_game", schema.RelDate),
		col("coach_debut", schema.RelDate),
		col("coach_last_game", schema.RelDate),
		col("ump_debut", schema.RelDate),
		col("ump_last_game", schema.RelDate),
		col("deathdate", schema.RelDate),
		col("death_city", schema.RelVarchar),
		col("death_state", schema.RelVarchar),
		col("death_country", schema.RelVarchar),
		col("bats", schema.RelChar),
		col("throws", schema.RelChar),
		col("height", schema.RelVarchar),
		col("weight", schema.RelSmallInt),
		col("cemetery", schema.RelVarchar),
		col("cemetery_city", schema.RelVarchar),
		col("cemetery_state", schema.RelVarchar),
		col("cemetery_country", schema.RelVarchar),
		col("cemetery_note", schema.RelText),
		col("birth_name", schema.RelVarchar),
		col("name_change", schema.RelVarchar),
		col("bat_change", schema.RelVarchar),
		col("hall_of_fame", schema.RelVarchar),
	}
}

// gamelogColumns builds the Retrosheet game-log declaration. The layout is
// fixed by the upstream file format: game header, per-team counting stats
// (visitor first), umpires, managers, pitching decisions, starting lineups,
// and the trailing info fields.
func gamelogColumns() []schema.Column {
	cols := []schema.Column{
		{Name: "gamelog_id", Type: schema.RelInteger, AutoKey: true},
		col("date", schema.RelDate),
		col("double_header", schema.RelSmallInt),
		col("day_of_week", schema.RelChar),
		col("visiting_team", schema.RelChar),
		col("visiting_league", schema.RelChar),
		col("visiting_game_number", schema.RelSmallInt),
		col("home_team", schema.RelChar),
		col("home_league", schema.RelChar),
		col("home_game_number", schema.RelSmallInt),
		col("visitor_score", schema.RelSmallInt),
		col("home_score", schema.RelSmallInt),
		col("length_outs", schema.RelSmallInt),
		col("day_night", schema.RelChar),
		col("completion_info", schema.RelVarchar),
		col("forfeit_info", schema.RelVarchar),
		col("protest_info", schema.RelVarchar),
		col("park_id", schema.RelChar),
		col("attendance", schema.RelInteger),
		col("duration_minutes", schema.RelSmallInt),
		col("visitor_line_score", schema.RelVarchar),
		col("home_line_score", schema.RelVarchar),
	}

	// Counting stats appear as a fixed block per team, visitor first.
	teamStats := []string{
		"at_bats", "hits", "doubles", "triples", "homeruns", "rbi",
		"sacrifice_hits", "sacrifice_flies", "hit_by_pitch", "walks",
		"intentional_walks", "strikeouts", "stolen_bases", "caught_stealing",
		"grounded_into_double", "first_catcher_interference", "left_on_base",
		"pitchers_used", "individual_earned_runs", "team_earned_runs",
		"wild_pitches", "balks", "putouts", "assists", "errors",
		"passed_balls", "double_plays", "triple_plays",
	}
	for _, side := range []string{"visitor", "home"} {
		for _, stat := range teamStats {
			cols = append(cols, col(side+"_"+stat, schema.RelSmallInt))
		}
	}

	for _, pos := range []string{"home", "first_base", "second_base", "third_base", "left_field", "right_field"} {
		cols = append(cols,
			col("ump_"+pos+"_id", schema.RelChar),
			col("ump_"+pos+"_name", schema.RelVarchar),
		)
	}
	for _, role := range []string{
		"visitor_manager", "home_manager",
		"winning_pitcher", "losing_pitcher", "saving_pitcher",
		"game_winning_rbi", "visitor_starting_pitcher", "home_starting_pitcher",
	} {
		cols = append(cols,
			col(role+"_id", schema.RelChar),
			col(role+"_name", schema.RelVarchar),
		)
	}
	for _, side := range []string{"visitor", "home"} {
		for slot := 1; slot <= 9; slot++ {
			prefix := fmt.Sprintf("%s_batting_%d", side, slot)
			cols = append(cols,
				col(prefix+"_player_id", schema.RelChar),
				col(prefix+"_name", schema.RelVarchar),
				col(prefix+"_position", schema.RelSmallInt),
			)
		}
	}

	cols = append(cols,
		col("additional_info", schema.RelText),
		col("acquisition_info", schema.RelChar),
	)
	return cols
}
