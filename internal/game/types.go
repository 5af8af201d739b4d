package game

// ActionCode is the first element of a log record's Action array.
type ActionCode int

const (
	ActionReserved        ActionCode = 0
	ActionMoveSoldiers    ActionCode = 1
	ActionMoveGeneral     ActionCode = 2
	ActionUpgradeGeneral  ActionCode = 3
	ActionUseSkill        ActionCode = 4
	ActionUpgradeTech     ActionCode = 5
	ActionUseSuperWeapon  ActionCode = 6
	ActionRecruitGeneral  ActionCode = 7
	ActionRoundSettlement ActionCode = 8
	ActionGameEnd         ActionCode = 9
)

func (c ActionCode) Valid() bool { return c >= ActionMoveSoldiers && c <= ActionGameEnd }

// SystemPlayer is the Player value of records emitted by the judge itself.
const SystemPlayer = -1

// NoOwner marks an unowned cell.
const NoOwner = -1

type UnitType int

const (
	MainGeneral UnitType = 1
	SubGeneral  UnitType = 2
	OilField    UnitType = 3
)

var unitTypeNames = map[UnitType]string{
	MainGeneral: "Main General",
	SubGeneral:  "Sub General",
	OilField:    "Oil Field",
}

func (t UnitType) Name() (string, bool) {
	n, ok := unitTypeNames[t]
	return n, ok
}

// Quality is an upgrade track of a unit. Level vectors are indexed by Quality-1.
type Quality int

const (
	QualityProduction Quality = 1
	QualityDefence    Quality = 2
	QualityMobility   Quality = 3
)

var qualityNames = map[Quality]string{
	QualityProduction: "Produce",
	QualityDefence:    "Defense",
	QualityMobility:   "Mobility",
}

func (q Quality) Name() (string, bool) {
	n, ok := qualityNames[q]
	return n, ok
}

func (q Quality) Index() int { return int(q) - 1 }

type Skill int

const (
	SkillRush    Skill = 1
	SkillStrike  Skill = 2
	SkillCommand Skill = 3
	SkillHold    Skill = 4
	SkillWeaken  Skill = 5
)

var skillNames = map[Skill]string{
	SkillRush:    "Rush",
	SkillStrike:  "Strike",
	SkillCommand: "Command",
	SkillHold:    "Hold",
	SkillWeaken:  "Weaken",
}

func (s Skill) Name() (string, bool) {
	n, ok := skillNames[s]
	return n, ok
}

// Targeted reports whether the skill carries explicit target coordinates.
func (s Skill) Targeted() bool { return s == SkillRush || s == SkillStrike }

// Tech is a player technology track. Tech level vectors are indexed by Tech-1.
type Tech int

const (
	TechMobility     Tech = 1
	TechImmuneSwamp  Tech = 2
	TechImmuneSand   Tech = 3
	TechUnlockWeapon Tech = 4
)

var techNames = map[Tech]string{
	TechMobility:     "Mobility",
	TechImmuneSwamp:  "Immune Swamp",
	TechImmuneSand:   "Immune Desert",
	TechUnlockWeapon: "Unlock Weapon",
}

func (t Tech) Name() (string, bool) {
	n, ok := techNames[t]
	return n, ok
}

func (t Tech) Index() int { return int(t) - 1 }

type Weapon int

const (
	WeaponNuke     Weapon = 1
	WeaponEnhance  Weapon = 2
	WeaponTeleport Weapon = 3
	WeaponTimestop Weapon = 4
)

var weaponNames = map[Weapon]string{
	WeaponNuke:     "Nuke",
	WeaponEnhance:  "Enhance",
	WeaponTeleport: "Teleport",
	WeaponTimestop: "Timestop",
}

func (w Weapon) Name() (string, bool) {
	n, ok := weaponNames[w]
	return n, ok
}

// Terrain is the per-cell classification fixed at round 0.
type Terrain int

const (
	TerrainPlain Terrain = 0
	TerrainSand  Terrain = 1
	TerrainSwamp Terrain = 2
)

// TerrainFromByte reads one cell of the round-0 terrain string ('0'..'2').
func TerrainFromByte(c byte) (Terrain, bool) {
	t := Terrain(c) - '0'
	if t < TerrainPlain || t > TerrainSwamp {
		return 0, false
	}
	return t, true
}

// FirstBadTerrain returns the index of the first byte of s that is not a known terrain, or -1.
func FirstBadTerrain(s string) int {
	for i := 0; i < len(s); i++ {
		if _, ok := TerrainFromByte(s[i]); !ok {
			return i
		}
	}
	return -1
}
