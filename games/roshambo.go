package games

// Two players share a room code and throw rock, paper, or scissor each round
// Rock beats scissor, scissor beats paper, paper beats rock; equal throws draw
// The winner of a round scores a point; first to five points wins the match
// After a match ends, either player can reset the scores and play again

// Display formats:
// Two hands facing each other, one per player, with scores underneath
// Move buttons along the bottom, chat panel below

// Implementation details:
// - One websocket per player; the room code rides along in every message
// - First join for an unknown code creates the room; third join is rejected
// - The server never reveals a pending throw, only that one was made

// How to play
// - Pick a name and a skin in the lobby, then create or join a room
// - Share the four-digit code (or the QR link) with your opponent
// - Throw each round before your opponent gets bored
// - Practice mode plays against a scripted opponent without a server
